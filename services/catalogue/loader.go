package catalogue

import (
	"context"
	"fmt"

	"catalogue-order/cache"
	"catalogue-order/httpServices/backend"
	"catalogue-order/logger"
	"catalogue-order/types/order"
)

// defaultPage is the product page cached per category. Paging is part of
// the cache key contract but the backend currently returns whole categories.
const defaultPage = 1

// Loader supplies category metadata and per-category product lists,
// minimizing round trips. Callers decide nothing about caching or retries;
// both live here.
//
// Fallback chain for the category list: getCategories, then the combined
// getCatalogue call, then the bundled sample data. A failing per-category
// product fetch is a scoped error and never invalidates loaded categories.
type Loader interface {
	ListCategories(ctx context.Context) ([]backend.CategorySummary, error)
	ListProducts(ctx context.Context, categoryID string) ([]order.Product, error)
}

type loader struct {
	client *backend.Client
	store  *cache.Store
}

// NewLoader builds a loader over the backend client and a session cache.
func NewLoader(client *backend.Client, store *cache.Store) Loader {
	return &loader{client: client, store: store}
}

// ListCategories returns lightweight {id,name} records, cached for the
// session. The product lists stay empty until lazily loaded.
func (l *loader) ListCategories(ctx context.Context) ([]backend.CategorySummary, error) {
	var cached []backend.CategorySummary
	if l.store.Get(cache.CategoriesKey, &cached) {
		return cached, nil
	}

	resp, err := l.client.GetCategories(ctx)
	if err == nil {
		l.put(cache.CategoriesKey, resp.Categories)
		return resp.Categories, nil
	}
	logger.Warning(fmt.Sprintf("getCategories failed, trying full catalogue: %v", err))

	full, fullErr := l.client.GetCatalogue(ctx)
	if fullErr == nil {
		summaries := l.absorbCatalogue(full.Categories)
		return summaries, nil
	}
	logger.Warning(fmt.Sprintf("getCatalogue fallback failed, serving bundled data: %v", fullErr))

	return l.absorbCatalogue(SampleCategories), nil
}

// ListProducts returns the product records for one category. The first
// successful load per category is cached for the session; later calls are
// cache hits, never repeat network fetches.
func (l *loader) ListProducts(ctx context.Context, categoryID string) ([]order.Product, error) {
	key := cache.ProductsKey(categoryID, defaultPage)

	var cached []order.Product
	if l.store.Get(key, &cached) {
		return cached, nil
	}

	resp, err := l.client.GetProductsByCategory(ctx, categoryID)
	if err != nil {
		// Scoped failure: other categories keep their cached products.
		return nil, fmt.Errorf("load products for category %s: %w", categoryID, err)
	}

	l.put(key, resp.Products)
	return resp.Products, nil
}

// absorbCatalogue caches a combined catalogue (summaries plus per-category
// products) and returns the summary list.
func (l *loader) absorbCatalogue(categories []order.Category) []backend.CategorySummary {
	summaries := make([]backend.CategorySummary, 0, len(categories))
	for _, cat := range categories {
		summaries = append(summaries, backend.CategorySummary{ID: cat.ID, Name: cat.Name})
		l.put(cache.ProductsKey(cat.ID, defaultPage), cat.Products)
	}
	l.put(cache.CategoriesKey, summaries)
	return summaries
}

func (l *loader) put(key string, value interface{}) {
	if err := l.store.Set(key, value); err != nil {
		// A dropped cache write only costs a refetch later.
		logger.Warning(fmt.Sprintf("cache write failed for %s: %v", key, err))
	}
}
