package catalogue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"catalogue-order/cache"
	"catalogue-order/httpServices/backend"
	"catalogue-order/types/order"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend dispatches on the action query parameter the way the real
// gateway does, counting calls per action.
type fakeBackend struct {
	calls map[string]int

	failCategories bool
	failCatalogue  bool
	failProducts   bool
}

func (f *fakeBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := r.URL.Query().Get("action")
		f.calls[action]++

		switch action {
		case "getCategories":
			if f.failCategories {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(backend.CategoriesResponse{
				Success: true,
				Categories: []backend.CategorySummary{
					{ID: "cat1", Name: "Stands"},
					{ID: "cat2", Name: "Lighting"},
				},
			})
		case "getProductsByCategory":
			if f.failProducts {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(backend.ProductsResponse{
				Success: true,
				Products: []order.Product{
					{ID: "p1", Name: "Counter", UnitPrice: 120},
				},
			})
		case "getCatalogue":
			if f.failCatalogue {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(backend.CatalogueResponse{
				Success: true,
				Categories: []order.Category{
					{ID: "cat1", Name: "Stands", Products: []order.Product{{ID: "p1", Name: "Counter", UnitPrice: 120}}},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestLoader(t *testing.T, f *fakeBackend) (Loader, *httptest.Server) {
	t.Helper()
	f.calls = map[string]int{}
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)

	client := backend.NewClient(server.URL)
	store := cache.New(5*time.Minute, 0)
	return NewLoader(client, store), server
}

func TestListCategoriesCachesFirstLoad(t *testing.T) {
	f := &fakeBackend{}
	loader, _ := newTestLoader(t, f)

	first, err := loader.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := loader.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.calls["getCategories"], "second read must be a cache hit")
}

func TestListProductsFetchesOncePerCategory(t *testing.T) {
	f := &fakeBackend{}
	loader, _ := newTestLoader(t, f)

	for i := 0; i < 3; i++ {
		products, err := loader.ListProducts(context.Background(), "cat1")
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, "p1", products[0].ID)
	}

	assert.Equal(t, 1, f.calls["getProductsByCategory"])
}

func TestListCategoriesFallsBackToCatalogue(t *testing.T) {
	f := &fakeBackend{failCategories: true}
	loader, _ := newTestLoader(t, f)

	categories, err := loader.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "cat1", categories[0].ID)
	assert.Equal(t, 1, f.calls["getCatalogue"])

	// The combined payload seeds the product cache too.
	products, err := loader.ListProducts(context.Background(), "cat1")
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, 0, f.calls["getProductsByCategory"], "products came from the absorbed catalogue")
}

func TestListCategoriesFallsBackToSampleData(t *testing.T) {
	f := &fakeBackend{failCategories: true, failCatalogue: true}
	loader, _ := newTestLoader(t, f)

	categories, err := loader.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, len(SampleCategories))
	assert.Equal(t, SampleCategories[0].ID, categories[0].ID)

	// Sample products are served without touching the network again.
	products, err := loader.ListProducts(context.Background(), SampleCategories[0].ID)
	require.NoError(t, err)
	assert.Equal(t, SampleCategories[0].Products, products)
}

func TestListProductsFailureIsScoped(t *testing.T) {
	f := &fakeBackend{}
	loader, _ := newTestLoader(t, f)

	// Warm cat1 while the backend is healthy.
	_, err := loader.ListProducts(context.Background(), "cat1")
	require.NoError(t, err)

	f.failProducts = true

	_, err = loader.ListProducts(context.Background(), "cat2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cat2")

	// cat1 keeps serving from cache despite cat2's failure.
	products, err := loader.ListProducts(context.Background(), "cat1")
	require.NoError(t, err)
	assert.Len(t, products, 1)
}
