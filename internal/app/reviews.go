package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"staybook/internal/adapters/notify"
	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
)

type AddReview struct {
	ListingID  int64
	ReviewerID int64
	Rating     int
	Comment    string
}

// ReviewGate admits at most one active review per (listing, reviewer).
type ReviewGate struct {
	store    domain.Store
	cache    domain.Cache
	notifier domain.Notifier
	now      func() time.Time
}

func NewReviewGate(s domain.Store, c domain.Cache, n domain.Notifier) *ReviewGate {
	if n == nil {
		n = notify.Nop{}
	}
	return &ReviewGate{store: s, cache: c, notifier: n, now: time.Now}
}

func (g *ReviewGate) AddReview(ctx context.Context, req AddReview) (domain.Review, error) {
	r, err := g.add(ctx, req)
	observability.ObserveOperation("add_review", Outcome(err))
	if err != nil {
		return domain.Review{}, err
	}
	if g.cache != nil {
		invalidateReviews(ctx, g.cache, r.ListingID)
	}
	log.Info().Int64("review", r.ID).Int64("listing", r.ListingID).Int("rating", r.Rating).Msg("review added")
	handedOff("review_added", g.notifier.ReviewAdded(ctx, r))
	return r, nil
}

func (g *ReviewGate) add(ctx context.Context, req AddReview) (domain.Review, error) {
	if req.ReviewerID <= 0 {
		return domain.Review{}, domain.Invalid("reviewer is required")
	}
	if req.Rating < domain.MinRating || req.Rating > domain.MaxRating {
		return domain.Review{}, domain.Invalid("rating must be between %d and %d", domain.MinRating, domain.MaxRating)
	}

	var out domain.Review
	err := g.store.WithinListingLock(ctx, req.ListingID, func(tx domain.EntityStore) error {
		if _, err := activeListing(ctx, tx, req.ListingID); err != nil {
			return err
		}
		existing, err := tx.ListReviews(ctx, req.ListingID, req.ReviewerID)
		if err != nil {
			return fmt.Errorf("list reviews: %w", err)
		}
		for _, r := range existing {
			if r.Active {
				return fmt.Errorf("listing %d reviewer %d: %w", req.ListingID, req.ReviewerID, domain.ErrDuplicateReview)
			}
		}
		now := g.now().UTC()
		r := domain.Review{
			ListingID:  req.ListingID,
			ReviewerID: req.ReviewerID,
			Rating:     req.Rating,
			Comment:    strings.TrimSpace(req.Comment),
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.InsertReview(ctx, &r); err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
		out = r
		return nil
	})
	return out, err
}
