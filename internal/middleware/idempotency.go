package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

// ResponseStore persists responses for idempotent requests.
type ResponseStore interface {
	GetResponse(ctx context.Context, key string) ([]byte, error)
	SaveResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
	Headers    http.Header     `json:"headers"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware returns middleware that replays the recorded response
// of a POST, PUT or PATCH carrying a previously seen Idempotency-Key. Keys are
// scoped to the request path.
func IdempotencyMiddleware(store ResponseStore, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		// Only apply to mutating methods.
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" || store == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		cached, err := getCachedResponse(ctx, store, cacheKey)
		if err != nil {
			// Store error - proceed without idempotency.
			log.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if cached != nil {
			for k, v := range cached.Headers {
				for _, val := range v {
					c.Header(k, val)
				}
			}
			c.Header("Idempotent-Replayed", "true")
			c.Data(cached.StatusCode, "application/json", cached.Body)
			c.Abort()
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// Server errors are retried, not replayed.
		if c.Writer.Status() >= 200 && c.Writer.Status() < 500 {
			response := cachedResponse{
				StatusCode: c.Writer.Status(),
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := setCachedResponse(ctx, store, cacheKey, &response, idempotencyTTL); err != nil {
				log.Warn("failed to record idempotent response", zap.String("key", key), zap.Error(err))
			}
		}
	}
}

// getCachedResponse retrieves a cached response from the store.
func getCachedResponse(ctx context.Context, store ResponseStore, key string) (*cachedResponse, error) {
	data, err := store.GetResponse(ctx, key)
	if err != nil || data == nil {
		return nil, err
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &cached, nil
}

// setCachedResponse stores a response.
func setCachedResponse(ctx context.Context, store ResponseStore, key string, response *cachedResponse, ttl time.Duration) error {
	if len(response.Body) == 0 {
		response.Body = json.RawMessage("null")
	}
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	return store.SaveResponse(ctx, key, data, ttl)
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	// Only cache Content-Type header.
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
