package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitions(t *testing.T) {
	allowed := map[[2]BookingStatus]bool{
		{StatusPending, StatusConfirmed}:   true,
		{StatusPending, StatusCancelled}:   true,
		{StatusConfirmed, StatusCompleted}: true,
		{StatusConfirmed, StatusCancelled}: true,
	}
	all := []BookingStatus{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]BookingStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
			if want {
				assert.NoError(t, CheckTransition(from, to))
			} else {
				assert.ErrorIs(t, CheckTransition(from, to), ErrInvalidTransition)
			}
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusCompleted.Terminal())
}

func TestValid(t *testing.T) {
	assert.True(t, StatusCompleted.Valid())
	assert.False(t, BookingStatus("archived").Valid())
}
