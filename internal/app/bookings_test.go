package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"staybook/internal/app"
	"staybook/internal/domain"
	"staybook/internal/storage/memory"
)

const (
	host  = int64(1)
	guest = int64(2)
	other = int64(3)
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) BookingCreated(ctx context.Context, b domain.Booking) error {
	return m.Called(b.ID, b.Status).Error(0)
}

func (m *mockNotifier) BookingStatusChanged(ctx context.Context, b domain.Booking, from domain.BookingStatus) error {
	return m.Called(b.ID, from, b.Status).Error(0)
}

func (m *mockNotifier) ReviewAdded(ctx context.Context, r domain.Review) error {
	return m.Called(r.ListingID, r.ReviewerID).Error(0)
}

func seedListing(t *testing.T, s *memory.Store, rate string) domain.Listing {
	t.Helper()
	l := domain.Listing{
		HostID:        host,
		Title:         "Loft",
		Location:      "Lisbon",
		PricePerNight: decimal.RequireFromString(rate),
		MaxGuests:     4,
		Available:     true,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.InsertListing(context.Background(), &l))
	return l
}

func book(listingID, guestID int64, in, out string) app.CreateBooking {
	return app.CreateBooking{ListingID: listingID, GuestID: guestID, CheckIn: day(in), CheckOut: day(out), Guests: 1}
}

func TestCreate_ComputesTotalAndStartsPending(t *testing.T) {
	s := memory.New()
	l := seedListing(t, s, "100")
	m := app.NewBookingManager(s, nil)

	b, err := m.Create(context.Background(), book(l.ID, guest, "2025-01-10", "2025-01-15"))
	require.NoError(t, err)
	assert.True(t, b.TotalPrice.Equal(decimal.NewFromInt(500)), b.TotalPrice.String())
	assert.Equal(t, domain.StatusPending, b.Status)
	assert.NotZero(t, b.ID)

	stored, err := s.FindBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, stored.ID)
}

func TestCreate_PriceOverrideWins(t *testing.T) {
	s := memory.New()
	l := seedListing(t, s, "100")
	m := app.NewBookingManager(s, nil)

	req := book(l.ID, guest, "2025-01-10", "2025-01-12")
	override := decimal.RequireFromString("42.50")
	req.TotalPrice = &override
	b, err := m.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, b.TotalPrice.Equal(override))

	zero := decimal.Zero
	req = book(l.ID, guest, "2025-03-10", "2025-03-12")
	req.TotalPrice = &zero
	b, err = m.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, b.TotalPrice.Equal(decimal.NewFromInt(200)), "zero override means not set: %s", b.TotalPrice)

	neg := decimal.NewFromInt(-1)
	req = book(l.ID, guest, "2025-02-10", "2025-02-12")
	req.TotalPrice = &neg
	_, err = m.Create(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreate_Errors(t *testing.T) {
	s := memory.New()
	l := seedListing(t, s, "80")
	m := app.NewBookingManager(s, nil)
	ctx := context.Background()

	_, err := m.Create(ctx, book(l.ID, guest, "2025-01-10", "2025-01-10"))
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = m.Create(ctx, book(l.ID, guest, "2025-01-15", "2025-01-10"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = m.Create(ctx, book(l.ID, 0, "2025-01-10", "2025-01-12"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	tooMany := book(l.ID, guest, "2025-01-10", "2025-01-12")
	tooMany.Guests = 5
	_, err = m.Create(ctx, tooMany)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = m.Create(ctx, book(9999, guest, "2025-01-10", "2025-01-12"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	l.Active = false
	s.PutListing(l)
	_, err = m.Create(ctx, book(l.ID, guest, "2025-01-10", "2025-01-12"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreate_OverlapAndBackToBack(t *testing.T) {
	s := memory.New()
	l := seedListing(t, s, "100")
	m := app.NewBookingManager(s, nil)
	ctx := context.Background()

	_, err := m.Create(ctx, book(l.ID, guest, "2025-01-10", "2025-01-15"))
	require.NoError(t, err)

	_, err = m.Create(ctx, book(l.ID, other, "2025-01-14", "2025-01-16"))
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	_, err = m.Create(ctx, book(l.ID, other, "2025-01-15", "2025-01-20"))
	assert.NoError(t, err)

	_, err = m.Create(ctx, book(l.ID, other, "2025-01-05", "2025-01-10"))
	assert.NoError(t, err)
}

func TestCreate_AfterConfirmedStay(t *testing.T) {
	s := memory.New()
	l := seedListing(t, s, "100")
	m := app.NewBookingManager(s, nil)
	ctx := context.Background()

	b, err := m.Create(ctx, book(l.ID, guest, "2025-01-10", "2025-01-15"))
	require.NoError(t, err)
	_, err = m.Confirm(ctx, b.ID, host)
	require.NoError(t, err)

	next, err := m.Create(ctx, book(l.ID, other, "2025-01-15", "2025-01-18"))
	require.NoError(t, err)
	assert.True(t, next.TotalPrice.Equal(decimal.NewFromInt(300)), next.TotalPrice.String())

	_, err = m.Create(ctx, book(l.ID, other, "2025-01-12", "2025-01-20"))
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestCreate_CancelledBookingFreesDates(t *testing.T) {
	s := memory.New()
	l := seedListing(t, s, "100")
	m := app.NewBookingManager(s, nil)
	ctx := context.Background()

	b, err := m.Create(ctx, book(l.ID, guest, "2025-01-10", "2025-01-15"))
	require.NoError(t, err)
	_, err = m.Cancel(ctx, b.ID, guest)
	require.NoError(t, err)

	_, err = m.Create(ctx, book(l.ID, other, "2025-01-10", "2025-01-15"))
	assert.NoError(t, err)
}

func TestCreate_UnavailableListing(t *testing.T) {
	s := memory.New()
	l := seedListing(t, s, "100")
	l.Available = false
	s.PutListing(l)

	_, err := app.NewBookingManager(s, nil).Create(context.Background(), book(l.ID, guest, "2025-01-10", "2025-01-12"))
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestLifecycle_Transitions(t *testing.T) {
	s := memory.New()
	l := seedListing(t, s, "100")
	m := app.NewBookingManager(s, nil)
	ctx := context.Background()

	b, err := m.Create(ctx, book(l.ID, guest, "2025-01-10", "2025-01-15"))
	require.NoError(t, err)

	_, err = m.Complete(ctx, b.ID, host)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "pending cannot complete")

	_, err = m.Confirm(ctx, b.ID, guest)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := m.Confirm(ctx, b.ID, host)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)

	got, err = m.Complete(ctx, b.ID, host)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)

	_, err = m.Cancel(ctx, b.ID, guest)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	stored, err := s.FindBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.True(t, stored.TotalPrice.Equal(decimal.NewFromInt(500)))
}

func TestCancel_ByHostAndStrangers(t *testing.T) {
	s := memory.New()
	l := seedListing(t, s, "100")
	m := app.NewBookingManager(s, nil)
	ctx := context.Background()

	b, err := m.Create(ctx, book(l.ID, guest, "2025-01-10", "2025-01-15"))
	require.NoError(t, err)

	_, err = m.Cancel(ctx, b.ID, other)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := m.Cancel(ctx, b.ID, host)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.True(t, got.TotalPrice.Equal(decimal.NewFromInt(500)))

	_, err = m.Cancel(ctx, b.ID, guest)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = m.Cancel(ctx, 4242, guest)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentCreates_OnlyOneWins(t *testing.T) {
	s := memory.New()
	l := seedListing(t, s, "100")
	m := app.NewBookingManager(s, nil)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Create(context.Background(), book(l.ID, int64(100+i), "2025-06-01", "2025-06-07"))
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrUnavailable)
	}
	assert.Equal(t, 1, ok)

	blocking, err := s.ListBookingsForListing(context.Background(), l.ID, domain.BlockingStatuses)
	require.NoError(t, err)
	assert.Len(t, blocking, 1)
}

func TestConcurrentTransitions_OnlyOneWins(t *testing.T) {
	s := memory.New()
	l := seedListing(t, s, "100")
	m := app.NewBookingManager(s, nil)
	ctx := context.Background()

	b, err := m.Create(ctx, book(l.ID, guest, "2025-01-10", "2025-01-15"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); _, errs[0] = m.Confirm(ctx, b.ID, host) }()
	go func() { defer wg.Done(); _, errs[1] = m.Confirm(ctx, b.ID, host) }()
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestNotifier_CalledAfterCommit(t *testing.T) {
	s := memory.New()
	l := seedListing(t, s, "100")
	n := &mockNotifier{}
	m := app.NewBookingManager(s, n)
	ctx := context.Background()

	n.On("BookingCreated", mock.Anything, domain.StatusPending).Return(nil).Once()
	b, err := m.Create(ctx, book(l.ID, guest, "2025-01-10", "2025-01-15"))
	require.NoError(t, err)

	n.On("BookingStatusChanged", b.ID, domain.StatusPending, domain.StatusConfirmed).
		Return(errors.New("broker down")).Once()
	got, err := m.Confirm(ctx, b.ID, host)
	require.NoError(t, err, "notifier failures must not fail the transition")
	assert.Equal(t, domain.StatusConfirmed, got.Status)

	// rejected operations do not notify
	_, err = m.Create(ctx, book(l.ID, other, "2025-01-12", "2025-01-13"))
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	n.AssertExpectations(t)
}
