package models

import (
	"time"

	"github.com/lib/pq"
)

// ProductStatus marks whether a listing is visible in the marketplace.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// ProductCategories lists the fixed category set for listings.
var ProductCategories = []string{"books", "stationary", "electronics", "others"}

// IsValidCategory reports whether the value belongs to the fixed category set.
func IsValidCategory(category string) bool {
	for _, c := range ProductCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Product is a marketplace listing created by a student. A nil Branch means
// the listing is visible to every branch.
type Product struct {
	ID          string         `db:"id" json:"id"`
	StudentID   string         `db:"student_id" json:"student_id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Price       int            `db:"price" json:"price"`
	Category    string         `db:"category" json:"category"`
	Branch      *string        `db:"branch" json:"branch,omitempty"`
	ImageURLs   pq.StringArray `db:"image_urls" json:"image_urls"`
	Status      ProductStatus  `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Sort orders accepted by the filter pipeline.
const (
	SortNone      = "none"
	SortNewest    = "newest"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
)

// PriceRangeAll disables price-bucket filtering.
const PriceRangeAll = "all"

// ProductQuery bundles every browse-time filter input. Empty category or
// branch selections mean "match all", not "match none".
type ProductQuery struct {
	Search     string   `json:"search"`
	Categories []string `json:"categories"`
	Branches   []string `json:"branches"`
	PriceRange string   `json:"price_range"`
	FreeOnly   bool     `json:"free_only"`
	Sort       string   `json:"sort"`
}
