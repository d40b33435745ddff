package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
)

func strPtr(s string) *string { return &s }

func sampleCatalog() []models.Product {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.Product{
		{ID: "p1", Title: "Engineering Mathematics", Description: "Second year textbook", Price: 150, Category: "books", Branch: nil, CreatedAt: base.Add(1 * time.Hour)},
		{ID: "p2", Title: "Scientific Calculator", Description: "Casio fx-991", Price: 900, Category: "electronics", Branch: strPtr("CME"), CreatedAt: base.Add(2 * time.Hour)},
		{ID: "p3", Title: "Drawing Kit", Description: "Full drafter set", Price: 0, Category: "stationary", Branch: strPtr("ECE"), CreatedAt: base.Add(3 * time.Hour)},
		{ID: "p4", Title: "Old Lab Coat", Description: "Used once", Price: 6000, Category: "others", Branch: strPtr("CME"), CreatedAt: base.Add(4 * time.Hour)},
	}
}

func TestFilterProductsNoFiltersReturnsAll(t *testing.T) {
	products := sampleCatalog()
	result := FilterProducts(products, models.ProductQuery{PriceRange: models.PriceRangeAll, Sort: models.SortNone})
	require.Len(t, result, len(products))
	assert.Equal(t, "p1", result[0].ID)
	assert.Equal(t, 0, ActiveFilterCount(models.ProductQuery{PriceRange: models.PriceRangeAll}))
}

func TestFilterProductsSearchMatchesTitleAndDescription(t *testing.T) {
	products := sampleCatalog()

	result := FilterProducts(products, models.ProductQuery{Search: "calculator"})
	require.Len(t, result, 1)
	assert.Equal(t, "p2", result[0].ID)

	result = FilterProducts(products, models.ProductQuery{Search: "TEXTBOOK"})
	require.Len(t, result, 1)
	assert.Equal(t, "p1", result[0].ID)
}

func TestFilterProductsPriceBuckets(t *testing.T) {
	products := []models.Product{
		{ID: "free", Price: 0},
		{ID: "mid", Price: 150},
		{ID: "high", Price: 6000},
	}

	result := FilterProducts(products, models.ProductQuery{PriceRange: "100-500"})
	require.Len(t, result, 1)
	assert.Equal(t, "mid", result[0].ID)

	result = FilterProducts(products, models.ProductQuery{PriceRange: "5000+"})
	require.Len(t, result, 1)
	assert.Equal(t, "high", result[0].ID)

	result = FilterProducts(products, models.ProductQuery{PriceRange: "0"})
	require.Len(t, result, 1)
	assert.Equal(t, "free", result[0].ID)
}

func TestFilterProductsZeroBucketEqualsFreeOnly(t *testing.T) {
	products := sampleCatalog()
	byBucket := FilterProducts(products, models.ProductQuery{PriceRange: "0"})
	byFlag := FilterProducts(products, models.ProductQuery{PriceRange: models.PriceRangeAll, FreeOnly: true})
	assert.Equal(t, byBucket, byFlag)
}

func TestFilterProductsUnknownBucketActsAsAll(t *testing.T) {
	products := sampleCatalog()
	result := FilterProducts(products, models.ProductQuery{PriceRange: "banana"})
	assert.Len(t, result, len(products))
}

func TestFilterProductsBranchFacetKeepsNilBranch(t *testing.T) {
	products := sampleCatalog()
	result := FilterProducts(products, models.ProductQuery{Branches: []string{"CME"}})

	ids := make([]string, 0, len(result))
	for _, p := range result {
		ids = append(ids, p.ID)
	}
	// Campus-wide listings (nil branch) always survive a branch selection.
	assert.Equal(t, []string{"p1", "p2", "p4"}, ids)
}

func TestFilterProductsCategoryFacet(t *testing.T) {
	products := sampleCatalog()
	result := FilterProducts(products, models.ProductQuery{Categories: []string{"books", "stationary"}})
	require.Len(t, result, 2)
	assert.Equal(t, "p1", result[0].ID)
	assert.Equal(t, "p3", result[1].ID)
}

func TestFilterProductsSortOrders(t *testing.T) {
	products := sampleCatalog()

	newest := FilterProducts(products, models.ProductQuery{Sort: models.SortNewest})
	require.Len(t, newest, 4)
	assert.Equal(t, "p4", newest[0].ID)
	assert.Equal(t, "p1", newest[3].ID)

	asc := FilterProducts(products, models.ProductQuery{Sort: models.SortPriceAsc})
	assert.Equal(t, "p3", asc[0].ID)
	assert.Equal(t, "p4", asc[3].ID)

	desc := FilterProducts(products, models.ProductQuery{Sort: models.SortPriceDesc})
	assert.Equal(t, "p4", desc[0].ID)
	assert.Equal(t, "p3", desc[3].ID)
}

func TestFilterProductsDoesNotMutateInput(t *testing.T) {
	products := sampleCatalog()
	originalFirst := products[0].ID

	_ = FilterProducts(products, models.ProductQuery{Sort: models.SortPriceDesc})
	assert.Equal(t, originalFirst, products[0].ID)
}

func TestFilterProductsIsIdempotent(t *testing.T) {
	products := sampleCatalog()
	query := models.ProductQuery{Categories: []string{"books"}, PriceRange: "100-500", Sort: models.SortPriceAsc}

	first := FilterProducts(products, query)
	second := FilterProducts(products, query)
	assert.Equal(t, first, second)
}

func TestActiveFilterCount(t *testing.T) {
	query := models.ProductQuery{
		Search:     "ignored by the count",
		Categories: []string{"books", "electronics"},
		Branches:   []string{"CME"},
		PriceRange: "1-100",
		FreeOnly:   true,
	}
	assert.Equal(t, 5, ActiveFilterCount(query))

	assert.Equal(t, 0, ActiveFilterCount(models.ProductQuery{Search: "abc", PriceRange: models.PriceRangeAll}))
	assert.Equal(t, 1, ActiveFilterCount(models.ProductQuery{FreeOnly: true}))

	// A bucket key the pipeline does not recognise matches everything, so
	// the badge count must not include it.
	assert.Equal(t, 0, ActiveFilterCount(models.ProductQuery{PriceRange: "200-300"}))
}
