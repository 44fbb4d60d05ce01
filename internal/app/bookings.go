package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"staybook/internal/adapters/notify"
	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
)

type CreateBooking struct {
	ListingID int64
	GuestID   int64
	CheckIn   time.Time
	CheckOut  time.Time
	Guests    int
	// TotalPrice overrides the computed nightly total when set and non-zero.
	TotalPrice *decimal.Decimal
}

// BookingManager owns booking creation and every status change.
type BookingManager struct {
	store    domain.Store
	notifier domain.Notifier
	now      func() time.Time
}

func NewBookingManager(s domain.Store, n domain.Notifier) *BookingManager {
	if n == nil {
		n = notify.Nop{}
	}
	return &BookingManager{store: s, notifier: n, now: time.Now}
}

func (m *BookingManager) Create(ctx context.Context, req CreateBooking) (domain.Booking, error) {
	b, err := m.create(ctx, req)
	observability.ObserveOperation("create", Outcome(err))
	if err != nil {
		return domain.Booking{}, err
	}
	log.Info().
		Int64("booking", b.ID).
		Int64("listing", b.ListingID).
		Int64("guest", b.GuestID).
		Str("total", b.TotalPrice.StringFixed(2)).
		Msg("booking created")
	handedOff("booking_created", m.notifier.BookingCreated(ctx, b))
	return b, nil
}

func (m *BookingManager) create(ctx context.Context, req CreateBooking) (domain.Booking, error) {
	if req.GuestID <= 0 {
		return domain.Booking{}, domain.Invalid("guest is required")
	}
	if req.Guests < 1 {
		return domain.Booking{}, domain.Invalid("number_of_guests must be at least 1")
	}
	dr, err := domain.NewDateRange(req.CheckIn, req.CheckOut)
	if err != nil {
		return domain.Booking{}, err
	}
	if req.TotalPrice != nil && req.TotalPrice.IsNegative() {
		return domain.Booking{}, domain.Invalid("total_price must not be negative")
	}

	var out domain.Booking
	err = m.store.WithinListingLock(ctx, req.ListingID, func(tx domain.EntityStore) error {
		l, err := activeListing(ctx, tx, req.ListingID)
		if err != nil {
			return err
		}
		if req.Guests > l.MaxGuests {
			return domain.Invalid("listing %d accepts at most %d guests", l.ID, l.MaxGuests)
		}
		a, err := availabilityOf(ctx, tx, l, dr)
		if err != nil {
			return err
		}
		if !a.Available {
			return fmt.Errorf("listing %d %s..%s: %w", l.ID,
				dr.CheckIn.Format(time.DateOnly), dr.CheckOut.Format(time.DateOnly), domain.ErrUnavailable)
		}

		total := priceFor(l.PricePerNight, dr)
		if req.TotalPrice != nil && !req.TotalPrice.IsZero() {
			total = *req.TotalPrice
		}
		now := m.now().UTC()
		b := domain.Booking{
			ListingID:  l.ID,
			GuestID:    req.GuestID,
			CheckIn:    dr.CheckIn,
			CheckOut:   dr.CheckOut,
			Guests:     req.Guests,
			TotalPrice: total,
			Status:     domain.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		out = b
		return nil
	})
	return out, err
}

// Get returns a booking visible to actorID: its guest or the listing host.
func (m *BookingManager) Get(ctx context.Context, id, actorID int64) (domain.Booking, error) {
	b, l, err := m.load(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := guestOrHost(b, l, actorID); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

// Cancel is allowed to the guest and to the listing host while the booking is
// pending or confirmed. The total price is left as booked.
func (m *BookingManager) Cancel(ctx context.Context, id, actorID int64) (domain.Booking, error) {
	return m.transition(ctx, "cancel", id, domain.StatusCancelled, func(b domain.Booking, l domain.Listing) error {
		return guestOrHost(b, l, actorID)
	})
}

// Confirm is the host accepting a pending booking.
func (m *BookingManager) Confirm(ctx context.Context, id, hostID int64) (domain.Booking, error) {
	return m.transition(ctx, "confirm", id, domain.StatusConfirmed, hostOnly(hostID))
}

// Complete closes a confirmed stay.
func (m *BookingManager) Complete(ctx context.Context, id, hostID int64) (domain.Booking, error) {
	return m.transition(ctx, "complete", id, domain.StatusCompleted, hostOnly(hostID))
}

func (m *BookingManager) transition(
	ctx context.Context,
	op string,
	id int64,
	to domain.BookingStatus,
	authorize func(domain.Booking, domain.Listing) error,
) (domain.Booking, error) {
	b, from, err := m.applyTransition(ctx, id, to, authorize)
	observability.ObserveOperation(op, Outcome(err))
	if err != nil {
		return domain.Booking{}, err
	}
	log.Info().
		Int64("booking", b.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("booking status changed")
	handedOff("booking_status_changed", m.notifier.BookingStatusChanged(ctx, b, from))
	return b, nil
}

func (m *BookingManager) applyTransition(
	ctx context.Context,
	id int64,
	to domain.BookingStatus,
	authorize func(domain.Booking, domain.Listing) error,
) (domain.Booking, domain.BookingStatus, error) {
	b, l, err := m.load(ctx, id)
	if err != nil {
		return domain.Booking{}, "", err
	}
	if err := authorize(b, l); err != nil {
		return domain.Booking{}, "", err
	}
	from := b.Status
	if err := domain.CheckTransition(from, to); err != nil {
		return domain.Booking{}, "", fmt.Errorf("booking %d: %w", id, err)
	}
	if err := m.store.UpdateBookingStatus(ctx, id, from, to); err != nil {
		return domain.Booking{}, "", fmt.Errorf("booking %d: %w", id, err)
	}
	b.Status = to
	b.UpdatedAt = m.now().UTC()
	return b, from, nil
}

func (m *BookingManager) load(ctx context.Context, id int64) (domain.Booking, domain.Listing, error) {
	b, err := m.store.FindBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, domain.Listing{}, fmt.Errorf("booking %d: %w", id, err)
	}
	l, err := m.store.FindListing(ctx, b.ListingID)
	if err != nil {
		return domain.Booking{}, domain.Listing{}, fmt.Errorf("listing %d: %w", b.ListingID, err)
	}
	return b, l, nil
}

// Bookings of other users are reported as missing rather than forbidden.
func guestOrHost(b domain.Booking, l domain.Listing, actorID int64) error {
	if actorID != b.GuestID && actorID != l.HostID {
		return fmt.Errorf("booking %d: %w", b.ID, domain.ErrNotFound)
	}
	return nil
}

func hostOnly(hostID int64) func(domain.Booking, domain.Listing) error {
	return func(b domain.Booking, l domain.Listing) error {
		if hostID != l.HostID {
			return fmt.Errorf("booking %d: only the listing host may do this: %w", b.ID, domain.ErrForbidden)
		}
		return nil
	}
}

// Outcome is the metrics label for an operation result.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrDuplicateReview):
		return "duplicate"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	}
	return "error"
}
