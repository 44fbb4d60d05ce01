package mysql

import (
	"database/sql"
	"time"

	"staybook/internal/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

func nowUTC() time.Time { return time.Now().UTC() }

func scanCategory(s scanner) (domain.Category, error) {
	var c domain.Category
	var desc sql.NullString
	if err := s.Scan(&c.ID, &c.Name, &c.Slug, &desc, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return domain.Category{}, err
	}
	c.Description = desc.String
	return c, nil
}

func scanListing(s scanner) (domain.Listing, error) {
	var l domain.Listing
	var category sql.NullInt64
	var desc, amenities sql.NullString
	if err := s.Scan(
		&l.ID,
		&l.HostID,
		&category,
		&l.Title,
		&desc,
		&l.Location,
		&l.PricePerNight,
		&l.MaxGuests,
		&l.Bedrooms,
		&l.Bathrooms,
		&amenities,
		&l.Available,
		&l.Active,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		return domain.Listing{}, err
	}
	if category.Valid {
		id := category.Int64
		l.CategoryID = &id
	}
	l.Description = desc.String
	l.Amenities = amenities.String
	return l, nil
}

func scanBooking(s scanner) (domain.Booking, error) {
	var b domain.Booking
	var status string
	if err := s.Scan(
		&b.ID,
		&b.ListingID,
		&b.GuestID,
		&b.CheckIn,
		&b.CheckOut,
		&b.Guests,
		&b.TotalPrice,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	b.CheckIn = domain.Day(b.CheckIn)
	b.CheckOut = domain.Day(b.CheckOut)
	return b, nil
}
