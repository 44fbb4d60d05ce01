package app

import (
	"context"
	"fmt"

	"staybook/internal/domain"
)

const defaultReviewLimit = 50

func listingKey(id int64) string { return fmt.Sprintf("listing:%d", id) }

func reviewsKey(listingID int64, limit int) string {
	return fmt.Sprintf("reviews:%d:%d", listingID, limit)
}

func invalidateListing(ctx context.Context, c domain.Cache, id int64) {
	_ = c.Del(ctx, listingKey(id))
}

// invalidateReviews drops the page sizes the API serves most.
func invalidateReviews(ctx context.Context, c domain.Cache, listingID int64) {
	for _, lim := range []int{defaultReviewLimit, 100, 200} {
		_ = c.Del(ctx, reviewsKey(listingID, lim))
	}
}
