package domain

import (
	"time"
)

// Product status constants.
const (
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
	ProductStatusDraft    = "draft"
)

// Product is a read-only view of a catalog entity as seen by the search
// engine. The backing store owns the data; this engine never mutates it.
// Popularity counters (orders, reviews, wishlist adds) are maintained by
// external write paths.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         int64     `json:"price"`
	Stock         int       `json:"stock"`
	Status        string    `json:"status"`
	CategoryID    string    `json:"category_id"`
	CategoryName  string    `json:"category_name"`
	Tags          []string  `json:"tags"`
	ImageURL      string    `json:"image_url"`
	OrderCount    int       `json:"order_count"`
	ReviewCount   int       `json:"review_count"`
	WishlistCount int       `json:"wishlist_count"`
	RatingAvg     float64   `json:"rating_avg"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ValidStatuses returns the set of valid product statuses.
func ValidStatuses() []string {
	return []string{ProductStatusActive, ProductStatusInactive, ProductStatusDraft}
}

// IsValidStatus checks whether the given status string is a valid product status.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}
