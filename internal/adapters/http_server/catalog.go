package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"staybook/internal/app"
	"staybook/internal/domain"
)

var orderings = map[string]bool{"price": true, "-price": true, "created_at": true, "-created_at": true, "title": true}

func (h *Handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Q.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cs))
}

func (h *Handlers) categoryListings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ls, err := h.Q.CategoryListings(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ls))
}

func (h *Handlers) listListings(w http.ResponseWriter, r *http.Request) {
	q, err := parseListingsQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ls, err := h.Q.ListListings(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ls))
}

func parseListingsQuery(r *http.Request) (domain.ListingsQuery, error) {
	v := r.URL.Query()
	var q domain.ListingsQuery

	if s := v.Get("category"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return q, domain.Invalid("category must be a number")
		}
		q.CategoryID = &id
	}
	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"min_price", &q.MinPrice}, {"max_price", &q.MaxPrice}} {
		if s := v.Get(p.name); s != "" {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return q, domain.Invalid("%s must be a decimal", p.name)
			}
			*p.dst = &d
		}
	}
	if s := strings.TrimSpace(v.Get("location")); s != "" {
		q.Location = &s
	}
	if s := v.Get("guests"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return q, domain.Invalid("guests must be a positive integer")
		}
		q.MinGuests = &n
	}
	for _, p := range []struct {
		name string
		dst  **int
	}{{"bedrooms", &q.Bedrooms}, {"bathrooms", &q.Bathrooms}} {
		if s := v.Get(p.name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return q, domain.Invalid("%s must be a non-negative integer", p.name)
			}
			*p.dst = &n
		}
	}
	if s := strings.TrimSpace(v.Get("search")); s != "" {
		q.Search = &s
	}
	if s := v.Get("available"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, domain.Invalid("available must be true or false")
		}
		q.Available = &b
	}
	if s := v.Get("ordering"); s != "" {
		if !orderings[s] {
			return q, domain.Invalid("unknown ordering %q", s)
		}
		q.Ordering = s
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 200 {
			return q, domain.Invalid("limit must be an integer between 1 and 200")
		}
		q.Limit = n
	}
	return q, nil
}

func (h *Handlers) getListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, err := h.Q.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeWithETag(w, r, l)
}

func (h *Handlers) listImages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	imgs, err := h.Q.ListImages(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(imgs))
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v := r.URL.Query()
	q := domain.ReviewsQuery{ListingID: id, Limit: 50, Ordering: v.Get("ordering")}
	if ls := v.Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		q.Limit = l
	}
	if rs := v.Get("rating"); rs != "" {
		n, err := strconv.Atoi(rs)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid rating", "rating must be an integer")
			return
		}
		q.Rating = &n
	}
	page, err := h.Q.ListReviews(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page.Items = nonNil(page.Items)
	writeWithETag(w, r, page)
}

type rangeView struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

type availabilityView struct {
	ListingID int64       `json:"listing_id"`
	CheckIn   string      `json:"check_in"`
	CheckOut  string      `json:"check_out"`
	Available bool        `json:"available"`
	Conflicts []rangeView `json:"conflicts"`
}

func (h *Handlers) availability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, err := parseDay("check_in", r.URL.Query().Get("check_in"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := parseDay("check_out", r.URL.Query().Get("check_out"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.Availability.CheckAvailability(r.Context(), id, in, out)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v := availabilityView{
		ListingID: a.ListingID,
		CheckIn:   a.Range.CheckIn.Format(time.DateOnly),
		CheckOut:  a.Range.CheckOut.Format(time.DateOnly),
		Available: a.Available,
		Conflicts: []rangeView{},
	}
	for _, c := range a.Conflicts {
		v.Conflicts = append(v.Conflicts, rangeView{c.CheckIn.Format(time.DateOnly), c.CheckOut.Format(time.DateOnly)})
	}
	writeJSON(w, http.StatusOK, v)
}

type listingRequest struct {
	CategoryID    *int64          `json:"category_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Location      string          `json:"location"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	MaxGuests     int             `json:"max_guests"`
	Bedrooms      int             `json:"bedrooms"`
	Bathrooms     int             `json:"bathrooms"`
	Amenities     string          `json:"amenities"`
}

func (h *Handlers) createListing(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	l, err := h.Listings.CreateListing(r.Context(), app.NewListing{
		HostID:        currentUser(r),
		CategoryID:    req.CategoryID,
		Title:         req.Title,
		Description:   req.Description,
		Location:      req.Location,
		PricePerNight: req.PricePerNight,
		MaxGuests:     req.MaxGuests,
		Bedrooms:      req.Bedrooms,
		Bathrooms:     req.Bathrooms,
		Amenities:     req.Amenities,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/listings/"+strconv.FormatInt(l.ID, 10))
	writeJSON(w, http.StatusCreated, l)
}

type imageRequest struct {
	Image   string `json:"image"`
	Caption string `json:"caption"`
	Primary bool   `json:"is_primary"`
	Order   int    `json:"order"`
}

func (h *Handlers) addImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req imageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	img, err := h.Listings.AddImage(r.Context(), currentUser(r), domain.ListingImage{
		ListingID: id,
		URL:       req.Image,
		Caption:   req.Caption,
		Primary:   req.Primary,
		Order:     req.Order,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handlers) addReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rv, err := h.Reviews.AddReview(r.Context(), app.AddReview{
		ListingID:  id,
		ReviewerID: currentUser(r),
		Rating:     req.Rating,
		Comment:    req.Comment,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

// nonNil keeps empty collections rendering as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
