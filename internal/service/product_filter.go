package service

import (
	"sort"
	"strings"

	"github.com/gandhamprakashtech/stumart-api/internal/models"
)

// priceBucket resolves a bucket key to an inclusive range. hasMax false means
// no upper bound rather than a sentinel value.
type priceBucket struct {
	min    int
	max    int
	hasMax bool
}

var priceBuckets = map[string]priceBucket{
	"0":         {min: 0, max: 0, hasMax: true},
	"1-100":     {min: 1, max: 100, hasMax: true},
	"100-500":   {min: 100, max: 500, hasMax: true},
	"500-1000":  {min: 500, max: 1000, hasMax: true},
	"1000-5000": {min: 1000, max: 5000, hasMax: true},
	"5000+":     {min: 5000, hasMax: false},
}

// FilterProducts narrows a listing snapshot by the query's facets. All stages
// are AND-combined and re-run in full on every call; the input slice is never
// mutated. Empty category or branch selections match everything, and a nil
// listing branch matches any branch selection.
func FilterProducts(products []models.Product, query models.ProductQuery) []models.Product {
	filtered := make([]models.Product, 0, len(products))

	search := strings.ToLower(strings.TrimSpace(query.Search))
	categories := toSet(query.Categories)
	branches := toSet(query.Branches)
	bucket, bucketActive := priceBuckets[query.PriceRange]
	if query.PriceRange == models.PriceRangeAll || query.PriceRange == "" {
		bucketActive = false
	}

	for _, product := range products {
		if search != "" &&
			!strings.Contains(strings.ToLower(product.Title), search) &&
			!strings.Contains(strings.ToLower(product.Description), search) {
			continue
		}
		if len(categories) > 0 {
			if _, ok := categories[product.Category]; !ok {
				continue
			}
		}
		if len(branches) > 0 && product.Branch != nil {
			if _, ok := branches[*product.Branch]; !ok {
				continue
			}
		}
		if bucketActive {
			if product.Price < bucket.min {
				continue
			}
			if bucket.hasMax && product.Price > bucket.max {
				continue
			}
		}
		if query.FreeOnly && product.Price != 0 {
			continue
		}
		filtered = append(filtered, product)
	}

	switch query.Sort {
	case models.SortNewest:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
		})
	case models.SortPriceAsc:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Price < filtered[j].Price
		})
	case models.SortPriceDesc:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Price > filtered[j].Price
		})
	}

	return filtered
}

// ActiveFilterCount counts the constraints a query applies: facet selections
// by cardinality, the price bucket and free-only flag as 0-or-1 each. The
// search text is not a counted filter, and an unknown bucket key does not
// constrain the listing so it is not counted either.
func ActiveFilterCount(query models.ProductQuery) int {
	count := len(query.Categories) + len(query.Branches)
	if _, known := priceBuckets[query.PriceRange]; known {
		count++
	}
	if query.FreeOnly {
		count++
	}
	return count
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
