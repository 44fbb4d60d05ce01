package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID         int64     `json:"id"`
	ListingID  int64     `json:"listing_id"`
	ReviewerID int64     `json:"reviewer_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	Active     bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ReviewsPage struct {
	Items      []Review `json:"items"`
	NextCursor *string  `json:"next_cursor,omitempty"`
}

// ReviewsQuery selects active reviews of one listing.
type ReviewsQuery struct {
	ListingID int64
	Rating    *int
	Ordering  string // rating|-rating|created_at|-created_at (default)
	Limit     int
}

// Default reports whether q asks for the plain newest-first page.
func (q ReviewsQuery) Default() bool {
	return q.Rating == nil && (q.Ordering == "" || q.Ordering == "-created_at")
}
