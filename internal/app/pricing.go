package app

import (
	"time"

	"github.com/shopspring/decimal"

	"staybook/internal/domain"
)

// ComputeTotalPrice returns nightlyRate x nights for [checkIn, checkOut).
func ComputeTotalPrice(nightlyRate decimal.Decimal, checkIn, checkOut time.Time) (decimal.Decimal, error) {
	dr, err := domain.NewDateRange(checkIn, checkOut)
	if err != nil {
		return decimal.Zero, err
	}
	return priceFor(nightlyRate, dr), nil
}

func priceFor(nightlyRate decimal.Decimal, dr domain.DateRange) decimal.Decimal {
	return nightlyRate.Mul(decimal.NewFromInt(int64(dr.Nights())))
}
