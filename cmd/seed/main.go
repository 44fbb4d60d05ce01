package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"staybook/internal/adapters/auth"
	"staybook/internal/adapters/observability"
	redisad "staybook/internal/adapters/redis"
	"staybook/internal/app"
	"staybook/internal/domain"
	"staybook/internal/shared"
	mysqlrepo "staybook/internal/storage/mysql"
)

const (
	hostID = int64(1)
	guests = 6
)

var categories = []struct{ name, desc string }{
	{"Apartments", "City flats and lofts"},
	{"Cabins", "Off-grid and countryside stays"},
	{"Beach Houses", "Steps from the sand"},
}

var listings = []struct {
	category string
	title    string
	location string
	rate     string
	guests   int
	image    string
}{
	{"apartments", "Riverside loft", "Lisbon, Portugal", "100.00", 4, "https://images.example.com/loft.jpg"},
	{"apartments", "Old town studio", "Porto, Portugal", "65.00", 2, "https://images.example.com/studio.jpg"},
	{"cabins", "Pine cabin", "Gerês, Portugal", "80.00", 5, "https://images.example.com/cabin.jpg"},
	{"beach-houses", "Dune house", "Comporta, Portugal", "180.00", 6, "https://images.example.com/dune.jpg"},
}

func main() {
	ctx := context.Background()
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.SetLevel(cfg.LogLevel)

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unreachable; cache invalidation skipped")
		cache = nil
	}

	catalog := app.NewListingService(repo, cache)
	bookings := app.NewBookingManager(repo, nil)
	reviews := app.NewReviewGate(repo, cache, nil)

	catIDs := seedCategories(ctx, catalog, repo)
	ls := seedListings(ctx, catalog, catIDs)

	created := seedBookings(ctx, bookings, ls, cfg.SeedWorkers)
	advance(ctx, bookings, reviews, created)

	tokens := auth.NewTokens(cfg.JWTSecret, 7*24*time.Hour)
	for uid := int64(1); uid <= guests+1; uid++ {
		tok, err := tokens.Issue(uid)
		if err != nil {
			log.Fatal().Err(err).Msg("issue token")
		}
		role := "guest"
		if uid == hostID {
			role = "host"
		}
		fmt.Printf("user %d (%s): %s\n", uid, role, tok)
	}
	log.Info().Int("listings", len(ls)).Int("bookings", len(created)).Msg("seed completed")
}

func seedCategories(ctx context.Context, svc *app.ListingService, repo *mysqlrepo.Repo) map[string]int64 {
	for _, c := range categories {
		if _, err := svc.CreateCategory(ctx, c.name, c.desc); err != nil && !errors.Is(err, domain.ErrValidation) {
			log.Fatal().Err(err).Str("category", c.name).Msg("create category")
		}
	}
	all, err := repo.ListCategories(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list categories")
	}
	ids := make(map[string]int64, len(all))
	for _, c := range all {
		ids[c.Slug] = c.ID
	}
	return ids
}

func seedListings(ctx context.Context, svc *app.ListingService, catIDs map[string]int64) []domain.Listing {
	var out []domain.Listing
	for _, in := range listings {
		var cat *int64
		if id, ok := catIDs[in.category]; ok {
			cat = &id
		}
		l, err := svc.CreateListing(ctx, app.NewListing{
			HostID:        hostID,
			CategoryID:    cat,
			Title:         in.title,
			Location:      in.location,
			PricePerNight: decimal.RequireFromString(in.rate),
			MaxGuests:     in.guests,
			Bedrooms:      (in.guests + 1) / 2,
			Bathrooms:     1,
			Amenities:     "wifi,kitchen",
		})
		if err != nil {
			log.Fatal().Err(err).Str("title", in.title).Msg("create listing")
		}
		if _, err := svc.AddImage(ctx, hostID, domain.ListingImage{ListingID: l.ID, URL: in.image, Primary: true}); err != nil {
			log.Warn().Err(err).Int64("listing", l.ID).Msg("add image failed")
		}
		out = append(out, l)
	}
	return out
}

// seedBookings has every guest try the same weeks on every listing in
// parallel. The listing lock lets exactly one guest win each slot.
func seedBookings(ctx context.Context, m *app.BookingManager, ls []domain.Listing, workers int) []domain.Booking {
	if workers <= 0 {
		workers = 4
	}
	start := domain.Day(time.Now()).AddDate(0, 0, 14)
	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	results := make(chan domain.Booking, len(ls)*guests*2)
	var rejected atomic.Int64
	for _, l := range ls {
		for week := 0; week < 2; week++ {
			in := start.AddDate(0, 0, 7*week)
			out := in.AddDate(0, 0, 5)
			for guest := int64(2); guest <= guests+1; guest++ {
				if err := sem.Acquire(gctx, 1); err != nil {
					break
				}
				listingID, guestID := l.ID, guest
				g.Go(func() error {
					defer sem.Release(1)
					b, err := m.Create(gctx, app.CreateBooking{
						ListingID: listingID,
						GuestID:   guestID,
						CheckIn:   in,
						CheckOut:  out,
						Guests:    1,
					})
					switch {
					case errors.Is(err, domain.ErrUnavailable):
						rejected.Add(1)
						return nil
					case err != nil:
						return fmt.Errorf("listing %d guest %d: %w", listingID, guestID, err)
					}
					results <- b
					return nil
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("seed bookings")
	}
	close(results)

	var out []domain.Booking
	for b := range results {
		out = append(out, b)
	}
	log.Info().Int("booked", len(out)).Int64("rejected_overlaps", rejected.Load()).Msg("bookings seeded")
	return out
}

// advance moves seeded bookings through the lifecycle: the first week is
// confirmed and completed then reviewed, the second is confirmed or cancelled.
func advance(ctx context.Context, m *app.BookingManager, g *app.ReviewGate, bs []domain.Booking) {
	firstWeek := map[int64]time.Time{}
	for _, b := range bs {
		if t, ok := firstWeek[b.ListingID]; !ok || b.CheckIn.Before(t) {
			firstWeek[b.ListingID] = b.CheckIn
		}
	}
	for i, b := range bs {
		var err error
		switch {
		case b.CheckIn.Equal(firstWeek[b.ListingID]):
			if _, err = m.Confirm(ctx, b.ID, hostID); err == nil {
				_, err = m.Complete(ctx, b.ID, hostID)
			}
			if err == nil {
				_, err = g.AddReview(ctx, app.AddReview{
					ListingID:  b.ListingID,
					ReviewerID: b.GuestID,
					Rating:     4 + i%2,
					Comment:    "Lovely stay, would book again.",
				})
			}
		case i%2 == 0:
			_, err = m.Confirm(ctx, b.ID, hostID)
		default:
			_, err = m.Cancel(ctx, b.ID, b.GuestID)
		}
		if err != nil && !errors.Is(err, domain.ErrDuplicateReview) {
			log.Warn().Err(err).Int64("booking", b.ID).Msg("advance booking failed")
		}
	}
}
