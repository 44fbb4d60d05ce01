package domain

import "context"

// EntityStore is the persistence boundary used by the booking core.
type EntityStore interface {
	FindListing(ctx context.Context, id int64) (Listing, error)

	FindBooking(ctx context.Context, id int64) (Booking, error)
	ListBookingsForListing(ctx context.Context, listingID int64, statuses []BookingStatus) ([]Booking, error)
	InsertBooking(ctx context.Context, b *Booking) error
	// UpdateBookingStatus moves a booking from -> to. It returns
	// ErrInvalidTransition when the stored status is no longer from.
	UpdateBookingStatus(ctx context.Context, id int64, from, to BookingStatus) error

	ListReviews(ctx context.Context, listingID, reviewerID int64) ([]Review, error)
	InsertReview(ctx context.Context, r *Review) error
}

// Store adds listing-scoped serialization on top of EntityStore.
type Store interface {
	EntityStore

	// WithinListingLock runs fn while holding an exclusive lock on the listing.
	// Writes made through the EntityStore passed to fn are committed only when
	// fn returns nil.
	WithinListingLock(ctx context.Context, listingID int64, fn func(EntityStore) error) error
}

// CatalogRepository serves the read side and host-owned writes.
type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	FindCategory(ctx context.Context, id int64) (Category, error)
	InsertCategory(ctx context.Context, c *Category) error

	FindListing(ctx context.Context, id int64) (Listing, error)
	ListListings(ctx context.Context, q ListingsQuery) ([]Listing, error)
	InsertListing(ctx context.Context, l *Listing) error

	ListImages(ctx context.Context, listingID int64) ([]ListingImage, error)
	InsertImage(ctx context.Context, img *ListingImage) error

	ListActiveReviews(ctx context.Context, q ReviewsQuery) ([]Review, error)
	ListGuestBookings(ctx context.Context, q BookingsQuery) ([]Booking, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Notifier receives lifecycle events after they are committed.
type Notifier interface {
	BookingCreated(ctx context.Context, b Booking) error
	BookingStatusChanged(ctx context.Context, b Booking, from BookingStatus) error
	ReviewAdded(ctx context.Context, r Review) error
}
