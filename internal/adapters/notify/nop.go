package notify

import (
	"context"

	"staybook/internal/domain"
)

// Nop drops every event.
type Nop struct{}

func (Nop) BookingCreated(context.Context, domain.Booking) error { return nil }

func (Nop) BookingStatusChanged(context.Context, domain.Booking, domain.BookingStatus) error {
	return nil
}

func (Nop) ReviewAdded(context.Context, domain.Review) error { return nil }
