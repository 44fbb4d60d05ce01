//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app"
	"staybook/internal/domain"
	mysqlrepo "staybook/internal/storage/mysql"
)

// ---------- small helpers ----------

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// startMySQL runs an isolated MySQL and returns a migrated connection.
func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=staybook",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "staybook")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func seedListing(t *testing.T, repo *mysqlrepo.Repo, rate string) domain.Listing {
	t.Helper()
	now := time.Now().UTC()
	l := domain.Listing{
		HostID:        1,
		Title:         "Loft by the river",
		Location:      "Lisbon",
		PricePerNight: decimal.RequireFromString(rate),
		MaxGuests:     4,
		Bedrooms:      2,
		Bathrooms:     1,
		Available:     true,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, repo.InsertListing(context.Background(), &l))
	return l
}

// ---------- the tests ----------

func TestRepo_MySQL_CatalogAndBookings(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	now := time.Now().UTC()
	cat := domain.Category{Name: "Apartments", Slug: "apartments", Active: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.InsertCategory(ctx, &cat))
	dup := cat
	err := repo.InsertCategory(ctx, &dup)
	assert.ErrorIs(t, err, domain.ErrValidation)

	l := seedListing(t, repo, "100.00")
	got, err := repo.FindListing(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, got.PricePerNight.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "Lisbon", got.Location)

	_, err = repo.FindListing(ctx, 999999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	loc := "lis"
	found, err := repo.ListListings(ctx, domain.ListingsQuery{Location: &loc, Ordering: "price"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	b := domain.Booking{
		ListingID:  l.ID,
		GuestID:    7,
		CheckIn:    day("2025-01-10"),
		CheckOut:   day("2025-01-15"),
		Guests:     2,
		TotalPrice: decimal.RequireFromString("500.00"),
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, repo.InsertBooking(ctx, &b))

	fb, err := repo.FindBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2025-01-10"), fb.CheckIn)
	assert.Equal(t, domain.StatusPending, fb.Status)
	assert.True(t, fb.TotalPrice.Equal(decimal.NewFromInt(500)))

	require.NoError(t, repo.UpdateBookingStatus(ctx, b.ID, domain.StatusPending, domain.StatusConfirmed))
	err = repo.UpdateBookingStatus(ctx, b.ID, domain.StatusPending, domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	err = repo.UpdateBookingStatus(ctx, 424242, domain.StatusPending, domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	blocking, err := repo.ListBookingsForListing(ctx, l.ID, domain.BlockingStatuses)
	require.NoError(t, err)
	require.Len(t, blocking, 1)

	mine, err := repo.ListGuestBookings(ctx, domain.BookingsQuery{GuestID: 7})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	other := l.ID + 1000
	mine, err = repo.ListGuestBookings(ctx, domain.BookingsQuery{GuestID: 7, ListingID: &other, Ordering: "check_in_date"})
	require.NoError(t, err)
	assert.Empty(t, mine)

	search, beds, baths := "river", 2, 3
	found, err = repo.ListListings(ctx, domain.ListingsQuery{Search: &search, Bedrooms: &beds})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	found, err = repo.ListListings(ctx, domain.ListingsQuery{Search: &search, Bathrooms: &baths})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestRepo_MySQL_ReviewUniqueKey(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()
	l := seedListing(t, repo, "80.00")

	now := time.Now().UTC()
	r1 := domain.Review{ListingID: l.ID, ReviewerID: 3, Rating: 5, Comment: "great", Active: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.InsertReview(ctx, &r1))

	r2 := r1
	err := repo.InsertReview(ctx, &r2)
	assert.ErrorIs(t, err, domain.ErrDuplicateReview)

	// inactive rows do not take part in the unique key
	r3 := domain.Review{ListingID: l.ID, ReviewerID: 3, Rating: 2, Active: false, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.InsertReview(ctx, &r3))

	active, err := repo.ListActiveReviews(ctx, domain.ReviewsQuery{ListingID: l.ID, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	r4 := domain.Review{ListingID: l.ID, ReviewerID: 4, Rating: 2, Active: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.InsertReview(ctx, &r4))
	active, err = repo.ListActiveReviews(ctx, domain.ReviewsQuery{ListingID: l.ID, Ordering: "rating"})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, []int{2, 5}, []int{active[0].Rating, active[1].Rating})

	five := 5
	active, err = repo.ListActiveReviews(ctx, domain.ReviewsQuery{ListingID: l.ID, Rating: &five})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(3), active[0].ReviewerID)
}

func TestBookingManager_MySQL_ConcurrentOverlapsSerialized(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	l := seedListing(t, repo, "100.00")
	mgr := app.NewBookingManager(repo, nil)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = mgr.Create(context.Background(), app.CreateBooking{
				ListingID: l.ID,
				GuestID:   int64(100 + i),
				CheckIn:   day("2025-03-01"),
				CheckOut:  day("2025-03-05"),
				Guests:    1,
			})
		}(i)
	}
	wg.Wait()

	var ok, unavailable int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, unavailable)
}
