package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_Exists(t *testing.T) {
	dir := NewStatic("Alice", "bob")
	ctx := context.Background()

	t.Run("case-insensitive match", func(t *testing.T) {
		ok, err := dir.Exists(ctx, "ALICE")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unknown account", func(t *testing.T) {
		ok, err := dir.Exists(ctx, "mallory")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestHTTPDirectory_Exists(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/accounts/alice":
			w.WriteHeader(http.StatusOK)
		case "/accounts/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dir, err := NewHTTPDirectory(srv.URL, srv.Client(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("existing account", func(t *testing.T) {
		ok, err := dir.Exists(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("missing account", func(t *testing.T) {
		ok, err := dir.Exists(ctx, "mallory")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("answers are cached", func(t *testing.T) {
		before := hits.Load()
		for i := 0; i < 5; i++ {
			ok, err := dir.Exists(ctx, "alice")
			require.NoError(t, err)
			assert.True(t, ok)
		}
		assert.Equal(t, before, hits.Load(), "cached lookups must not hit the directory")
	})

	t.Run("server error surfaces and is not cached", func(t *testing.T) {
		before := hits.Load()
		_, err := dir.Exists(ctx, "broken")
		require.Error(t, err)
		_, err = dir.Exists(ctx, "broken")
		require.Error(t, err)
		assert.Equal(t, before+2, hits.Load())
	})

	t.Run("blank account short-circuits", func(t *testing.T) {
		before := hits.Load()
		ok, err := dir.Exists(ctx, "  ")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, before, hits.Load())
	})
}

func TestNewHTTPDirectory_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPDirectory("", nil, nil)
	assert.Error(t, err)
}
