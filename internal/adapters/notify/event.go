// Package notify delivers booking and review lifecycle events to other systems.
package notify

import (
	"time"

	"github.com/google/uuid"

	"staybook/internal/domain"
)

const (
	KeyBookingCreated       = "booking.created"
	KeyBookingStatusChanged = "booking.status_changed"
	KeyReviewCreated        = "review.created"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

type BookingData struct {
	Booking domain.Booking       `json:"booking"`
	From    domain.BookingStatus `json:"from,omitempty"`
}

func newEvent(kind string, data any, now time.Time) Event {
	return Event{ID: uuid.NewString(), Type: kind, OccurredAt: now.UTC(), Data: data}
}
