package mysql

// Column lists shared by the SELECTs and their scanners in repo.go.
const (
	categoryCols = `id, name, slug, description, is_active, created_at, updated_at`
	listingCols  = `id, host_id, category_id, title, description, location, price_per_night,
  max_guests, bedrooms, bathrooms, amenities, is_available, is_active, created_at, updated_at`
	imageCols   = `id, listing_id, image_url, caption, is_primary, sort_order, created_at`
	reviewCols  = `id, listing_id, reviewer_id, rating, comment, is_active, created_at, updated_at`
	bookingCols = `id, listing_id, guest_id, check_in_date, check_out_date, number_of_guests,
  total_price, status, created_at, updated_at`
)

// -----------------------------------------------------------------------------
// WRITES
// -----------------------------------------------------------------------------

const insertCategorySQL = `
INSERT INTO categories (name, slug, description, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`

const insertListingSQL = `
INSERT INTO listings
  (host_id, category_id, title, description, location, price_per_night,
   max_guests, bedrooms, bathrooms, amenities, is_available, is_active, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertImageSQL = `
INSERT INTO listing_images (listing_id, image_url, caption, is_primary, sort_order, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

const insertReviewSQL = `
INSERT INTO reviews (listing_id, reviewer_id, rating, comment, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

const insertBookingSQL = `
INSERT INTO bookings
  (listing_id, guest_id, check_in_date, check_out_date, number_of_guests,
   total_price, status, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Guarded by the current status so concurrent transitions cannot both apply.
const updateBookingStatusSQL = `
UPDATE bookings
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?
`

// -----------------------------------------------------------------------------
// READS
// -----------------------------------------------------------------------------

// Row lock that serializes availability checks and inserts per listing.
const lockListingSQL = `SELECT id FROM listings WHERE id = ? FOR UPDATE`

const getCategorySQL = `SELECT ` + categoryCols + ` FROM categories WHERE id = ?`

const listCategoriesSQL = `SELECT ` + categoryCols + ` FROM categories WHERE is_active = 1 ORDER BY name`

const getListingSQL = `SELECT ` + listingCols + ` FROM listings WHERE id = ?`

const listImagesSQL = `
SELECT ` + imageCols + `
FROM listing_images
WHERE listing_id = ?
ORDER BY is_primary DESC, sort_order, id
`

const listReviewsByReviewerSQL = `
SELECT ` + reviewCols + `
FROM reviews
WHERE listing_id = ? AND reviewer_id = ?
ORDER BY id
`

// Filters, ORDER BY and LIMIT are appended by ListActiveReviews.
const listActiveReviewsSQL = `SELECT ` + reviewCols + ` FROM reviews WHERE listing_id = ? AND is_active = 1`

const getBookingSQL = `SELECT ` + bookingCols + ` FROM bookings WHERE id = ?`

const listGuestBookingsSQL = `SELECT ` + bookingCols + ` FROM bookings WHERE guest_id = ?`

const bookingExistsSQL = `SELECT COUNT(1) FROM bookings WHERE id = ?`
