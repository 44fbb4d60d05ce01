package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain"
)

type Availability struct {
	ListingID int64
	Range     domain.DateRange
	Available bool
	// Conflicts lists the blocking bookings that overlap Range.
	Conflicts []domain.DateRange
}

type AvailabilityEngine struct {
	store domain.EntityStore
}

func NewAvailabilityEngine(s domain.EntityStore) *AvailabilityEngine {
	return &AvailabilityEngine{store: s}
}

// IsAvailable reports whether the listing can take a booking for
// [checkIn, checkOut): the listing accepts bookings and no pending or
// confirmed booking overlaps the range.
func (e *AvailabilityEngine) IsAvailable(ctx context.Context, listingID int64, checkIn, checkOut time.Time) (bool, error) {
	a, err := e.CheckAvailability(ctx, listingID, checkIn, checkOut)
	if err != nil {
		return false, err
	}
	return a.Available, nil
}

func (e *AvailabilityEngine) CheckAvailability(ctx context.Context, listingID int64, checkIn, checkOut time.Time) (Availability, error) {
	dr, err := domain.NewDateRange(checkIn, checkOut)
	if err != nil {
		return Availability{}, err
	}
	l, err := activeListing(ctx, e.store, listingID)
	if err != nil {
		return Availability{}, err
	}
	return availabilityOf(ctx, e.store, l, dr)
}

func availabilityOf(ctx context.Context, store domain.EntityStore, l domain.Listing, dr domain.DateRange) (Availability, error) {
	existing, err := store.ListBookingsForListing(ctx, l.ID, domain.BlockingStatuses)
	if err != nil {
		return Availability{}, fmt.Errorf("list bookings for listing %d: %w", l.ID, err)
	}
	a := Availability{ListingID: l.ID, Range: dr}
	for _, b := range existing {
		if b.Range().Overlaps(dr) {
			a.Conflicts = append(a.Conflicts, b.Range())
		}
	}
	a.Available = l.Available && len(a.Conflicts) == 0
	return a, nil
}

// activeListing hides inactive listings behind ErrNotFound.
func activeListing(ctx context.Context, store domain.EntityStore, id int64) (domain.Listing, error) {
	l, err := store.FindListing(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Listing{}, fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
		}
		return domain.Listing{}, err
	}
	if !l.Active {
		return domain.Listing{}, fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
	}
	return l, nil
}
