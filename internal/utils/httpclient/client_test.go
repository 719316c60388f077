package httpclient

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/config"
	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(&config.PlatformConfig{BaseURL: srv.URL + "/", Timeout: 5}, nil, logger)
}

func TestClient_DoSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/listings", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Royal Spa", body["name"])

		w.Header().Set("X-RateLimit-Remaining", "41")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 1234}`))
	})

	resp := c.Do(context.Background(), model.OpCreate, Call{
		Method:  http.MethodPost,
		Path:    "/listings",
		Body:    map[string]any{"name": "Royal Spa"},
		Headers: map[string]string{"Authorization": "Bearer tok"},
	})
	require.True(t, resp.Success)
	assert.Equal(t, model.OpCreate, resp.Operation)
	assert.Equal(t, "1234", StringField(resp.Data, "id"))
	require.NotNil(t, resp.RateLimitRemaining)
	assert.Equal(t, 41, *resp.RateLimitRemaining)
}

func TestClient_DoGzip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(`{"id":"abc"}`))
		_ = gz.Close()
	})
	resp := c.Do(context.Background(), model.OpGet, Call{Method: http.MethodGet, Path: "listings/abc"})
	require.True(t, resp.Success)
	assert.Equal(t, "abc", StringField(resp.Data, "id"))
}

func TestClient_DoClassifiesFailures(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusTooManyRequests, model.ReasonRateLimited},
		{http.StatusUnauthorized, model.ReasonAuthentication},
		{http.StatusForbidden, model.ReasonAuthentication},
		{http.StatusUnprocessableEntity, model.ReasonValidation},
		{http.StatusNotFound, model.ReasonNotFound},
		{http.StatusBadGateway, model.ReasonNetworkError},
		{http.StatusTeapot, model.ReasonUnexpected},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})
			resp := c.Do(context.Background(), model.OpUpdate, Call{Method: http.MethodPut, Path: "listings/1"})
			assert.False(t, resp.Success)
			assert.Equal(t, tt.want, resp.Error)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestClient_DoRetryAfter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	resp := c.Do(context.Background(), model.OpCreate, Call{Method: http.MethodPost, Path: "listings"})
	assert.Equal(t, model.ReasonRateLimited, resp.Error)
	require.NotNil(t, resp.RateLimitReset)
	assert.Equal(t, fixed.Add(7*time.Second), *resp.RateLimitReset)
}

func TestClient_DoNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	c := New(&config.PlatformConfig{BaseURL: srv.URL, Timeout: 1}, nil, logger)

	resp := c.Do(context.Background(), model.OpCreate, Call{Method: http.MethodPost, Path: "listings"})
	assert.False(t, resp.Success)
	assert.Equal(t, model.ReasonNetworkError, resp.Error)
}
