package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"

	"staybook/internal/domain"
)

const errDuplicateKey = 1062

func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func valText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isDuplicate(err error) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateKey
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repo struct {
	db *sql.DB
	q  querier
}

func New(db *sql.DB) *Repo { return &Repo{db: db, q: db} }

// WithinListingLock runs fn in a transaction holding the listing row lock.
func (r *Repo) WithinListingLock(ctx context.Context, listingID int64, fn func(domain.EntityStore) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var id int64
	if err := tx.QueryRowContext(ctx, lockListingSQL, listingID).Scan(&id); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("listing %d: %w", listingID, domain.ErrNotFound)
		}
		return err
	}
	if err := fn(&Repo{db: r.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ---- categories ----

func (r *Repo) InsertCategory(ctx context.Context, c *domain.Category) error {
	res, err := r.q.ExecContext(ctx, insertCategorySQL,
		c.Name, c.Slug, valText(c.Description), c.Active, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return domain.Invalid("category slug %q already exists", c.Slug)
		}
		return err
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) FindCategory(ctx context.Context, id int64) (domain.Category, error) {
	c, err := scanCategory(r.q.QueryRowContext(ctx, getCategorySQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Category{}, domain.ErrNotFound
	}
	return c, err
}

func (r *Repo) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.q.QueryContext(ctx, listCategoriesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ---- listings ----

func (r *Repo) InsertListing(ctx context.Context, l *domain.Listing) error {
	res, err := r.q.ExecContext(ctx, insertListingSQL,
		l.HostID,
		valInt64(l.CategoryID),
		l.Title,
		valText(l.Description),
		l.Location,
		l.PricePerNight,
		l.MaxGuests,
		l.Bedrooms,
		l.Bathrooms,
		valText(l.Amenities),
		l.Available,
		l.Active,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return err
	}
	l.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) FindListing(ctx context.Context, id int64) (domain.Listing, error) {
	l, err := scanListing(r.q.QueryRowContext(ctx, getListingSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, err
}

var listingOrder = map[string]string{
	"price":       "price_per_night ASC, id",
	"-price":      "price_per_night DESC, id",
	"created_at":  "created_at ASC, id",
	"-created_at": "created_at DESC, id DESC",
	"title":       "title ASC, id",
}

func (r *Repo) ListListings(ctx context.Context, q domain.ListingsQuery) ([]domain.Listing, error) {
	where := []string{"is_active = 1"}
	var args []any
	if q.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, *q.CategoryID)
	}
	if q.MinPrice != nil {
		where = append(where, "price_per_night >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		where = append(where, "price_per_night <= ?")
		args = append(args, *q.MaxPrice)
	}
	if q.Location != nil && *q.Location != "" {
		where = append(where, "location LIKE ?")
		args = append(args, "%"+escapeLike(*q.Location)+"%")
	}
	if q.MinGuests != nil {
		where = append(where, "max_guests >= ?")
		args = append(args, *q.MinGuests)
	}
	if q.Bedrooms != nil {
		where = append(where, "bedrooms = ?")
		args = append(args, *q.Bedrooms)
	}
	if q.Bathrooms != nil {
		where = append(where, "bathrooms = ?")
		args = append(args, *q.Bathrooms)
	}
	if q.Search != nil && *q.Search != "" {
		where = append(where, "(title LIKE ? OR description LIKE ? OR location LIKE ? OR amenities LIKE ?)")
		pat := "%" + escapeLike(*q.Search) + "%"
		args = append(args, pat, pat, pat, pat)
	}
	if q.Available != nil {
		where = append(where, "is_available = ?")
		args = append(args, *q.Available)
	}
	order, ok := listingOrder[q.Ordering]
	if !ok {
		order = listingOrder["-created_at"]
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	query := "SELECT " + listingCols + " FROM listings WHERE " + strings.Join(where, " AND ") +
		" ORDER BY " + order + " LIMIT ?"
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ---- images ----

func (r *Repo) InsertImage(ctx context.Context, img *domain.ListingImage) error {
	res, err := r.q.ExecContext(ctx, insertImageSQL,
		img.ListingID, img.URL, valText(img.Caption), img.Primary, img.Order, img.CreatedAt)
	if err != nil {
		return err
	}
	img.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) ListImages(ctx context.Context, listingID int64) ([]domain.ListingImage, error) {
	rows, err := r.q.QueryContext(ctx, listImagesSQL, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ListingImage
	for rows.Next() {
		var img domain.ListingImage
		var caption sql.NullString
		if err := rows.Scan(&img.ID, &img.ListingID, &img.URL, &caption, &img.Primary, &img.Order, &img.CreatedAt); err != nil {
			return nil, err
		}
		img.Caption = caption.String
		out = append(out, img)
	}
	return out, rows.Err()
}

// ---- reviews ----

func (r *Repo) InsertReview(ctx context.Context, rv *domain.Review) error {
	res, err := r.q.ExecContext(ctx, insertReviewSQL,
		rv.ListingID, rv.ReviewerID, rv.Rating, valText(rv.Comment), rv.Active, rv.CreatedAt, rv.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("listing %d reviewer %d: %w", rv.ListingID, rv.ReviewerID, domain.ErrDuplicateReview)
		}
		return err
	}
	rv.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) ListReviews(ctx context.Context, listingID, reviewerID int64) ([]domain.Review, error) {
	return r.queryReviews(ctx, listReviewsByReviewerSQL, listingID, reviewerID)
}

var reviewOrder = map[string]string{
	"rating":      "rating ASC, id",
	"-rating":     "rating DESC, id DESC",
	"created_at":  "created_at ASC, id",
	"-created_at": "created_at DESC, id DESC",
}

func (r *Repo) ListActiveReviews(ctx context.Context, q domain.ReviewsQuery) ([]domain.Review, error) {
	query := listActiveReviewsSQL
	args := []any{q.ListingID}
	if q.Rating != nil {
		query += " AND rating = ?"
		args = append(args, *q.Rating)
	}
	order, ok := reviewOrder[q.Ordering]
	if !ok {
		order = reviewOrder["-created_at"]
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	return r.queryReviews(ctx, query+" ORDER BY "+order+" LIMIT ?", args...)
}

func (r *Repo) queryReviews(ctx context.Context, query string, args ...any) ([]domain.Review, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rv domain.Review
		var comment sql.NullString
		if err := rows.Scan(
			&rv.ID,
			&rv.ListingID,
			&rv.ReviewerID,
			&rv.Rating,
			&comment,
			&rv.Active,
			&rv.CreatedAt,
			&rv.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rv.Comment = comment.String
		out = append(out, rv)
	}
	return out, rows.Err()
}

// ---- bookings ----

func (r *Repo) InsertBooking(ctx context.Context, b *domain.Booking) error {
	res, err := r.q.ExecContext(ctx, insertBookingSQL,
		b.ListingID,
		b.GuestID,
		b.CheckIn,
		b.CheckOut,
		b.Guests,
		b.TotalPrice,
		string(b.Status),
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return err
	}
	b.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) FindBooking(ctx context.Context, id int64) (domain.Booking, error) {
	b, err := scanBooking(r.q.QueryRowContext(ctx, getBookingSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, domain.ErrNotFound
	}
	return b, err
}

func (r *Repo) ListBookingsForListing(ctx context.Context, listingID int64, statuses []domain.BookingStatus) ([]domain.Booking, error) {
	query := "SELECT " + bookingCols + " FROM bookings WHERE listing_id = ?"
	args := []any{listingID}
	if len(statuses) > 0 {
		query += " AND status IN (" + placeholders(len(statuses)) + ")"
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += " ORDER BY check_in_date, id"
	return r.queryBookings(ctx, query, args...)
}

var bookingOrder = map[string]string{
	"check_in_date":  "check_in_date ASC, id",
	"-check_in_date": "check_in_date DESC, id DESC",
	"created_at":     "created_at ASC, id",
	"-created_at":    "created_at DESC, id DESC",
}

func (r *Repo) ListGuestBookings(ctx context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	query := listGuestBookingsSQL
	args := []any{q.GuestID}
	if q.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*q.Status))
	}
	if q.ListingID != nil {
		query += " AND listing_id = ?"
		args = append(args, *q.ListingID)
	}
	order, ok := bookingOrder[q.Ordering]
	if !ok {
		order = bookingOrder["-created_at"]
	}
	return r.queryBookings(ctx, query+" ORDER BY "+order, args...)
}

func (r *Repo) UpdateBookingStatus(ctx context.Context, id int64, from, to domain.BookingStatus) error {
	res, err := r.q.ExecContext(ctx, updateBookingStatusSQL, string(to), nowUTC(), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var cnt int
	if err := r.q.QueryRowContext(ctx, bookingExistsSQL, id).Scan(&cnt); err != nil {
		return err
	}
	if cnt == 0 {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: booking is no longer %s", domain.ErrInvalidTransition, from)
}

func (r *Repo) queryBookings(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
