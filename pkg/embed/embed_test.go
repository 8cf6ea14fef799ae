package embed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedServer(t *testing.T, body string, calls *int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		assert.Equal(t, "/embedding", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedNestedResponse(t *testing.T) {
	var calls int64
	srv := embedServer(t, `[{"index":0,"embedding":[[0.1,0.2,0.3,0.4]]}]`, &calls)

	c := NewClient(srv.URL, 4)
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, vec)
}

func TestEmbedFlatResponse(t *testing.T) {
	var calls int64
	srv := embedServer(t, `{"embedding":[0.5,0.5,0.0,0.0]}`, &calls)

	c := NewClient(srv.URL, 4)
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestEmbedCachesByText(t *testing.T) {
	var calls int64
	srv := embedServer(t, `{"embedding":[1,0,0,0]}`, &calls)

	c := NewClient(srv.URL, 4)
	_, err := c.Embed(context.Background(), "same query")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "same query")
	require.NoError(t, err)

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
	assert.Equal(t, int64(1), c.CacheStats().Hits)
}

func TestEmbedEmptyText(t *testing.T) {
	c := NewClient("http://unused", 4)
	_, err := c.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	var calls int64
	srv := embedServer(t, `{"embedding":[1,0]}`, &calls)

	c := NewClient(srv.URL, 4)
	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "dims")
}

func TestEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, 4)
	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "500")
}
