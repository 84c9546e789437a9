package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (s *memoryStore) GetResponse(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.data[key], nil
}

func (s *memoryStore) SaveResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, ok := s.data[key]; !ok {
		s.data[key] = data
	}
	return nil
}

func newCountingRouter(store ResponseStore, status int) (*gin.Engine, *int) {
	calls := 0
	r := gin.New()
	r.Use(IdempotencyMiddleware(store, nil))
	handler := func(c *gin.Context) {
		calls++
		c.JSON(status, gin.H{"call": calls})
	}
	r.POST("/v1/trips", handler)
	r.POST("/v1/trips/:id/cancel", handler)
	r.GET("/v1/trips", handler)
	return r, &calls
}

func do(r http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysRecordedResponse(t *testing.T) {
	r, calls := newCountingRouter(newMemoryStore(), http.StatusCreated)

	first := do(r, http.MethodPost, "/v1/trips", "abc")
	second := do(r, http.MethodPost, "/v1/trips", "abc")

	assert.Equal(t, 1, *calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}

func TestIdempotency_KeysAreScopedToPath(t *testing.T) {
	r, calls := newCountingRouter(newMemoryStore(), http.StatusOK)

	do(r, http.MethodPost, "/v1/trips/a/cancel", "same")
	do(r, http.MethodPost, "/v1/trips/b/cancel", "same")

	assert.Equal(t, 2, *calls)
}

func TestIdempotency_SkipsWithoutKeyOrForReads(t *testing.T) {
	r, calls := newCountingRouter(newMemoryStore(), http.StatusOK)

	do(r, http.MethodPost, "/v1/trips", "")
	do(r, http.MethodPost, "/v1/trips", "")
	do(r, http.MethodGet, "/v1/trips", "k")
	do(r, http.MethodGet, "/v1/trips", "k")

	assert.Equal(t, 4, *calls)
}

func TestIdempotency_ServerErrorsAreNotRecorded(t *testing.T) {
	store := newMemoryStore()
	r, calls := newCountingRouter(store, http.StatusInternalServerError)

	do(r, http.MethodPost, "/v1/trips", "k")
	do(r, http.MethodPost, "/v1/trips", "k")

	assert.Equal(t, 2, *calls)
	assert.Empty(t, store.data)
}

func TestIdempotency_StoreFailureFallsThrough(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("redis down")
	r, calls := newCountingRouter(store, http.StatusOK)

	w := do(r, http.MethodPost, "/v1/trips", "k")
	do(r, http.MethodPost, "/v1/trips", "k")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, *calls)
}

func TestRequestLogger_LevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/ok", "/missing", "/boom"} {
		do(r, http.MethodGet, path, "")
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/missing", entries[1].ContextMap()["path"])
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	called := false
	r := gin.New()
	r.Use(CORSMiddleware())
	r.OPTIONS("/v1/trips", func(c *gin.Context) { called = true })

	w := do(r, http.MethodOptions, "/v1/trips", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, called)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), idempotencyHeader)
}
