package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Listing is a bookable property owned by its host.
type Listing struct {
	ID            int64           `json:"id"`
	HostID        int64           `json:"host_id"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Location      string          `json:"location"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	MaxGuests     int             `json:"max_guests"`
	Bedrooms      int             `json:"bedrooms"`
	Bathrooms     int             `json:"bathrooms"`
	Amenities     string          `json:"amenities,omitempty"`
	Available     bool            `json:"is_available"`
	Active        bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type ListingImage struct {
	ID        int64     `json:"id"`
	ListingID int64     `json:"listing_id"`
	URL       string    `json:"image"`
	Caption   string    `json:"caption,omitempty"`
	Primary   bool      `json:"is_primary"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

// ListingsQuery filters the active catalog. Nil fields are not applied.
type ListingsQuery struct {
	CategoryID *int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Location   *string
	MinGuests  *int
	Bedrooms   *int
	Bathrooms  *int
	Available  *bool
	// Search matches title, description, location or amenities, case-insensitively.
	Search   *string
	Ordering string // price|-price|created_at|-created_at|title
	Limit    int
}
