// Package memory is an in-process entity store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"staybook/internal/domain"
)

type Store struct {
	mu         sync.RWMutex
	seq        int64
	categories map[int64]domain.Category
	listings   map[int64]domain.Listing
	images     map[int64]domain.ListingImage
	reviews    map[int64]domain.Review
	bookings   map[int64]domain.Booking

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func New() *Store {
	return &Store{
		categories: map[int64]domain.Category{},
		listings:   map[int64]domain.Listing{},
		images:     map[int64]domain.ListingImage{},
		reviews:    map[int64]domain.Review{},
		bookings:   map[int64]domain.Booking{},
		locks:      map[int64]*sync.Mutex{},
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Store) listingLock(id int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// WithinListingLock serializes fn per listing. Inserts made through the
// EntityStore handed to fn are staged and applied only when fn succeeds.
func (s *Store) WithinListingLock(ctx context.Context, listingID int64, fn func(domain.EntityStore) error) error {
	if _, err := s.FindListing(ctx, listingID); err != nil {
		return err
	}
	lk := s.listingLock(listingID)
	lk.Lock()
	defer lk.Unlock()

	tx := &txStore{Store: s}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// ---- categories ----

func (s *Store) InsertCategory(_ context.Context, c *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.categories {
		if other.Slug == c.Slug {
			return domain.Invalid("category slug %q already exists", c.Slug)
		}
	}
	c.ID = s.nextID()
	s.categories[c.ID] = *c
	return nil
}

func (s *Store) FindCategory(_ context.Context, id int64) (domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return domain.Category{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCategories(context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Category
	for _, c := range s.categories {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---- listings ----

func (s *Store) InsertListing(_ context.Context, l *domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.nextID()
	s.listings[l.ID] = *l
	return nil
}

// PutListing replaces a stored listing; used to flip flags in tests and seeds.
func (s *Store) PutListing(l domain.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[l.ID] = l
}

func (s *Store) FindListing(_ context.Context, id int64) (domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (s *Store) ListListings(_ context.Context, q domain.ListingsQuery) ([]domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Listing
	for _, l := range s.listings {
		if matches(l, q) {
			out = append(out, l)
		}
	}
	sort.Slice(out, listingLess(out, q.Ordering))
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func matches(l domain.Listing, q domain.ListingsQuery) bool {
	switch {
	case !l.Active:
		return false
	case q.CategoryID != nil && (l.CategoryID == nil || *l.CategoryID != *q.CategoryID):
		return false
	case q.MinPrice != nil && l.PricePerNight.LessThan(*q.MinPrice):
		return false
	case q.MaxPrice != nil && l.PricePerNight.GreaterThan(*q.MaxPrice):
		return false
	case q.Location != nil && !strings.Contains(strings.ToLower(l.Location), strings.ToLower(*q.Location)):
		return false
	case q.MinGuests != nil && l.MaxGuests < *q.MinGuests:
		return false
	case q.Bedrooms != nil && l.Bedrooms != *q.Bedrooms:
		return false
	case q.Bathrooms != nil && l.Bathrooms != *q.Bathrooms:
		return false
	case q.Search != nil && !containsFold(*q.Search, l.Title, l.Description, l.Location, l.Amenities):
		return false
	case q.Available != nil && l.Available != *q.Available:
		return false
	}
	return true
}

func containsFold(needle string, fields ...string) bool {
	needle = strings.ToLower(needle)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func listingLess(ls []domain.Listing, ordering string) func(i, j int) bool {
	return func(i, j int) bool {
		a, b := ls[i], ls[j]
		switch ordering {
		case "price":
			if !a.PricePerNight.Equal(b.PricePerNight) {
				return a.PricePerNight.LessThan(b.PricePerNight)
			}
		case "-price":
			if !a.PricePerNight.Equal(b.PricePerNight) {
				return a.PricePerNight.GreaterThan(b.PricePerNight)
			}
		case "title":
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case "created_at":
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
		return a.ID < b.ID
	}
}

// ---- images ----

func (s *Store) InsertImage(_ context.Context, img *domain.ListingImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[img.ListingID]; !ok {
		return domain.ErrNotFound
	}
	img.ID = s.nextID()
	s.images[img.ID] = *img
	return nil
}

func (s *Store) ListImages(_ context.Context, listingID int64) ([]domain.ListingImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ListingImage
	for _, img := range s.images {
		if img.ListingID == listingID {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Primary != b.Primary {
			return a.Primary
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
	return out, nil
}

// ---- reviews ----

func (s *Store) InsertReview(_ context.Context, r *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertReviewLocked(r)
}

func (s *Store) insertReviewLocked(r *domain.Review) error {
	if r.Active {
		for _, other := range s.reviews {
			if other.Active && other.ListingID == r.ListingID && other.ReviewerID == r.ReviewerID {
				return domain.ErrDuplicateReview
			}
		}
	}
	if r.ID == 0 {
		r.ID = s.nextID()
	}
	s.reviews[r.ID] = *r
	return nil
}

func (s *Store) ListReviews(_ context.Context, listingID, reviewerID int64) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Review
	for _, r := range s.reviews {
		if r.ListingID == listingID && r.ReviewerID == reviewerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListActiveReviews(_ context.Context, q domain.ReviewsQuery) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Review
	for _, r := range s.reviews {
		if r.ListingID == q.ListingID && r.Active && (q.Rating == nil || r.Rating == *q.Rating) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch q.Ordering {
		case "rating":
			if a.Rating != b.Rating {
				return a.Rating < b.Rating
			}
			return a.ID < b.ID
		case "-rating":
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		case "created_at":
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID > b.ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ---- bookings ----

func (s *Store) InsertBooking(_ context.Context, b *domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.nextID()
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *Store) FindBooking(_ context.Context, id int64) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBookingsForListing(_ context.Context, listingID int64, statuses []domain.BookingStatus) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.ListingID == listingID && hasStatus(statuses, b.Status) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CheckIn.Equal(out[j].CheckIn) {
			return out[i].CheckIn.Before(out[j].CheckIn)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListGuestBookings(_ context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		switch {
		case b.GuestID != q.GuestID:
		case q.Status != nil && b.Status != *q.Status:
		case q.ListingID != nil && b.ListingID != *q.ListingID:
		default:
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch q.Ordering {
		case "check_in_date":
			if !a.CheckIn.Equal(b.CheckIn) {
				return a.CheckIn.Before(b.CheckIn)
			}
			return a.ID < b.ID
		case "-check_in_date":
			if !a.CheckIn.Equal(b.CheckIn) {
				return a.CheckIn.After(b.CheckIn)
			}
		case "created_at":
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (s *Store) UpdateBookingStatus(_ context.Context, id int64, from, to domain.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Status != from {
		return fmt.Errorf("%w: booking is no longer %s", domain.ErrInvalidTransition, from)
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	s.bookings[id] = b
	return nil
}

func hasStatus(statuses []domain.BookingStatus, s domain.BookingStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// txStore reads through to the store and stages inserts until commit.
type txStore struct {
	*Store
	bookings []domain.Booking
	reviews  []domain.Review
}

func (t *txStore) InsertBooking(_ context.Context, b *domain.Booking) error {
	t.Store.mu.Lock()
	b.ID = t.Store.nextID()
	t.Store.mu.Unlock()
	t.bookings = append(t.bookings, *b)
	return nil
}

func (t *txStore) InsertReview(_ context.Context, r *domain.Review) error {
	t.Store.mu.Lock()
	r.ID = t.Store.nextID()
	t.Store.mu.Unlock()
	t.reviews = append(t.reviews, *r)
	return nil
}

func (t *txStore) commit() {
	t.Store.mu.Lock()
	defer t.Store.mu.Unlock()
	for _, b := range t.bookings {
		t.Store.bookings[b.ID] = b
	}
	for i := range t.reviews {
		_ = t.Store.insertReviewLocked(&t.reviews[i])
	}
}
