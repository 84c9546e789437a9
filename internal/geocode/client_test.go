package geocode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"commute/internal/domain"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

func TestClient_Resolve(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		q := req.URL.Query()
		return req.URL.Path == "/v1/search" &&
			q.Get("q") == "서울 성동구 왕십리로 222" &&
			q.Get("key") == "test-key" &&
			q.Get("format") == "json"
	})).Return(createMockResponse(200, `[{"lat":"37.5574","lon":"127.0473","display_name":"222, Wangsimni-ro, Seongdong-gu, Seoul"}]`), nil)

	client := NewClientWithHTTPDoer("test-key", "https://geocoder.test/", mockHTTP)

	loc, err := client.Resolve(context.Background(), "서울 성동구 왕십리로 222")
	require.NoError(t, err)

	assert.InDelta(t, 37.5574, loc.Lat, 1e-9)
	assert.InDelta(t, 127.0473, loc.Lng, 1e-9)
	assert.Equal(t, "222, Wangsimni-ro, Seongdong-gu, Seoul", loc.Address)
	assert.Equal(t, domain.LocationSourceGeocoded, loc.Source)
	mockHTTP.AssertExpectations(t)
}

func TestClient_ResolveFailures(t *testing.T) {
	tests := []struct {
		name   string
		resp   *http.Response
		netErr error
	}{
		{"no results", createMockResponse(200, `[]`), nil},
		{"not found", createMockResponse(404, `{"error":"Unable to geocode"}`), nil},
		{"server error", createMockResponse(500, `oops`), nil},
		{"bad json", createMockResponse(200, `{`), nil},
		{"bad latitude", createMockResponse(200, `[{"lat":"north","lon":"127"}]`), nil},
		{"out of range", createMockResponse(200, `[{"lat":"137","lon":"127"}]`), nil},
		{"transport", nil, errors.New("dial tcp: i/o timeout")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockHTTP := &MockHTTPDoer{}
			mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(tt.resp, tt.netErr)

			client := NewClientWithHTTPDoer("test-key", "https://geocoder.test", mockHTTP)
			_, err := client.Resolve(context.Background(), "unknown place")
			assert.ErrorIs(t, err, ErrResolutionFailed)
		})
	}
}

func TestClient_FallbackChain(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(200, `[]`), nil)

	chain := NewFallbackResolver(NewClientWithHTTPDoer("k", "https://geocoder.test", mockHTTP), nil, domain.NamedLocation{}, nil)

	loc, err := chain.Resolve(context.Background(), "잠실역 사거리")
	require.NoError(t, err)
	assert.Equal(t, domain.LocationSourceLandmark, loc.Source)
	assert.Equal(t, "잠실역", loc.Address)
}
