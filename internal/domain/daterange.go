package domain

import "time"

// DateRange is the half-open stay interval [CheckIn, CheckOut) in calendar days.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// NewDateRange normalizes both ends to UTC midnight and rejects empty or
// inverted ranges.
func NewDateRange(checkIn, checkOut time.Time) (DateRange, error) {
	if checkIn.IsZero() || checkOut.IsZero() {
		return DateRange{}, ErrInvalidRange
	}
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if !dr.CheckOut.After(dr.CheckIn) {
		return DateRange{}, ErrInvalidRange
	}
	return dr, nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Nights counts calendar days. Both ends sit on UTC midnight, so Unix seconds
// divide evenly at any span (a time.Duration saturates at ~292 years).
func (dr DateRange) Nights() int {
	return int((dr.CheckOut.Unix() - dr.CheckIn.Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// Overlaps reports whether the ranges share at least one night. Ranges that
// only touch (one ends when the other starts) do not overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return other.CheckIn.Before(dr.CheckOut) && other.CheckOut.After(dr.CheckIn)
}
