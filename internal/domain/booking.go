package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// BlockingStatuses hold a listing's dates.
var BlockingStatuses = []BookingStatus{StatusPending, StatusConfirmed}

var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s BookingStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

type Booking struct {
	ID         int64           `json:"id"`
	ListingID  int64           `json:"listing_id"`
	GuestID    int64           `json:"guest_id"`
	CheckIn    time.Time       `json:"check_in_date"`
	CheckOut   time.Time       `json:"check_out_date"`
	Guests     int             `json:"number_of_guests"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     BookingStatus   `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (b Booking) Range() DateRange {
	return DateRange{CheckIn: b.CheckIn, CheckOut: b.CheckOut}
}

// BookingsQuery selects one guest's bookings. Nil fields are not applied.
type BookingsQuery struct {
	GuestID   int64
	ListingID *int64
	Status    *BookingStatus
	Ordering  string // check_in_date|-check_in_date|created_at|-created_at (default)
}
