package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"staybook/internal/domain"
)

type QueryService struct {
	repo     domain.CatalogRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.CatalogRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

// GetListing returns an active listing.
func (s *QueryService) GetListing(ctx context.Context, id int64) (domain.Listing, error) {
	key := listingKey(id)
	var l domain.Listing
	if ok, _ := s.cache.Get(ctx, key, &l); ok {
		return l, nil
	}
	l, err := s.repo.FindListing(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if !l.Active {
		return domain.Listing{}, fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
	}
	_ = s.cache.Set(ctx, key, l, int(s.cacheTTL.Seconds()))
	return l, nil
}

func (s *QueryService) ListListings(ctx context.Context, q domain.ListingsQuery) ([]domain.Listing, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	return s.repo.ListListings(ctx, q)
}

func (s *QueryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

// CategoryListings returns the bookable listings of an active category.
func (s *QueryService) CategoryListings(ctx context.Context, categoryID int64) ([]domain.Listing, error) {
	c, err := s.repo.FindCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, fmt.Errorf("category %d: %w", categoryID, domain.ErrNotFound)
	}
	available := true
	return s.repo.ListListings(ctx, domain.ListingsQuery{
		CategoryID: &c.ID,
		Available:  &available,
		Ordering:   "-created_at",
		Limit:      200,
	})
}

func (s *QueryService) ListImages(ctx context.Context, listingID int64) ([]domain.ListingImage, error) {
	if _, err := s.GetListing(ctx, listingID); err != nil {
		return nil, err
	}
	return s.repo.ListImages(ctx, listingID)
}

var (
	reviewOrderings  = map[string]bool{"rating": true, "-rating": true, "created_at": true, "-created_at": true}
	bookingOrderings = map[string]bool{"check_in_date": true, "-check_in_date": true, "created_at": true, "-created_at": true}
)

// ListReviews returns active reviews, newest first unless q orders them
// otherwise. Only the default page is cached.
func (s *QueryService) ListReviews(ctx context.Context, q domain.ReviewsQuery) (domain.ReviewsPage, error) {
	if q.Limit <= 0 {
		q.Limit = defaultReviewLimit
	}
	if q.Ordering != "" && !reviewOrderings[q.Ordering] {
		return domain.ReviewsPage{}, domain.Invalid("unknown ordering %q", q.Ordering)
	}
	if q.Rating != nil && (*q.Rating < domain.MinRating || *q.Rating > domain.MaxRating) {
		return domain.ReviewsPage{}, domain.Invalid("rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	}

	cached := q.Default()
	key := reviewsKey(q.ListingID, q.Limit)
	var out domain.ReviewsPage
	if cached {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}
	if _, err := s.GetListing(ctx, q.ListingID); err != nil {
		return domain.ReviewsPage{}, err
	}

	rs, err := s.repo.ListActiveReviews(ctx, q)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy so later mutation of the repo's slice cannot leak into the cached value
	page := domain.ReviewsPage{Items: make([]domain.Review, len(rs))}
	copy(page.Items, rs)

	if !cached {
		return page, nil
	}
	if b, _ := json.Marshal(page); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, page, int(s.cacheTTL.Seconds()))
	}
	return page, nil
}

// GuestBookings lists the guest's own bookings.
func (s *QueryService) GuestBookings(ctx context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	if q.Status != nil && !q.Status.Valid() {
		return nil, domain.Invalid("unknown status %q", *q.Status)
	}
	if q.Ordering != "" && !bookingOrderings[q.Ordering] {
		return nil, domain.Invalid("unknown ordering %q", q.Ordering)
	}
	return s.repo.ListGuestBookings(ctx, q)
}
