package catalog_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/niksmo/storefront/internal/adapter/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `[
	{
		"image": {"thumbnail": "/images/waffle-thumbnail.jpg"},
		"name": "Waffle with Berries",
		"category": "Waffle",
		"price": 6.5
	},
	{"name": "", "category": "Nameless", "price": 1},
	{"name": "Waffle with Berries", "category": "Waffle", "price": 7},
	{"name": "Broken", "category": "Cake", "price": -1},
	{"name": "Classic Tiramisu", "category": "Tiramisu", "price": 5.5}
]`

func writeCatalog(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestLoaderFile(t *testing.T) {
	t.Run("Regular", func(t *testing.T) {
		l := catalog.NewLoader(writeCatalog(t, testCatalog))

		ps, err := l.LoadProducts(t.Context())
		require.NoError(t, err)
		require.Len(t, ps, 2)

		assert.Equal(t, "Waffle with Berries", ps[0].Name)
		assert.Equal(t, "Waffle", ps[0].Category)
		assert.True(t, decimal.RequireFromString("6.5").Equal(ps[0].Price))
		assert.Equal(t, "/images/waffle-thumbnail.jpg", ps[0].Image.Thumbnail)
		assert.Equal(t, "Classic Tiramisu", ps[1].Name)
	})

	t.Run("Missing", func(t *testing.T) {
		l := catalog.NewLoader(filepath.Join(t.TempDir(), "absent.json"))
		_, err := l.LoadProducts(t.Context())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		l := catalog.NewLoader(writeCatalog(t, `{"name":`))
		_, err := l.LoadProducts(t.Context())
		assert.Error(t, err)
	})

	t.Run("Bundled", func(t *testing.T) {
		l := catalog.NewLoader(filepath.Join("..", "..", "..", "data", "data.json"))
		ps, err := l.LoadProducts(t.Context())
		require.NoError(t, err)
		assert.NotEmpty(t, ps)
	})
}

func TestLoaderHTTP(t *testing.T) {
	t.Run("RetryOnServerError", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(testCatalog))
			}),
		)
		defer srv.Close()

		ps, err := catalog.NewLoader(srv.URL + "/data/data.json").
			LoadProducts(t.Context())
		require.NoError(t, err)
		assert.Len(t, ps, 2)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("NoRetryOnClientError", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.NotFound(w, r)
			}),
		)
		defer srv.Close()

		_, err := catalog.NewLoader(srv.URL).LoadProducts(t.Context())
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}
