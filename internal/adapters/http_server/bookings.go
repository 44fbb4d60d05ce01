package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"staybook/internal/app"
	"staybook/internal/domain"
)

type bookingRequest struct {
	ListingID  int64            `json:"listing_id"`
	CheckIn    string           `json:"check_in_date"`
	CheckOut   string           `json:"check_out_date"`
	Guests     int              `json:"number_of_guests"`
	TotalPrice *decimal.Decimal `json:"total_price,omitempty"`
}

type bookingView struct {
	ID         int64                `json:"id"`
	ListingID  int64                `json:"listing_id"`
	GuestID    int64                `json:"guest_id"`
	CheckIn    string               `json:"check_in_date"`
	CheckOut   string               `json:"check_out_date"`
	Nights     int                  `json:"nights"`
	Guests     int                  `json:"number_of_guests"`
	TotalPrice string               `json:"total_price"`
	Status     domain.BookingStatus `json:"status"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func viewBooking(b domain.Booking) bookingView {
	return bookingView{
		ID:         b.ID,
		ListingID:  b.ListingID,
		GuestID:    b.GuestID,
		CheckIn:    b.CheckIn.Format(time.DateOnly),
		CheckOut:   b.CheckOut.Format(time.DateOnly),
		Nights:     b.Range().Nights(),
		Guests:     b.Guests,
		TotalPrice: b.TotalPrice.StringFixed(2),
		Status:     b.Status,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func parseDay(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, domain.Invalid("%s is required", field)
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, domain.Invalid("%s must be a YYYY-MM-DD date", field)
	}
	return t, nil
}

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ListingID <= 0 {
		writeProblem(w, http.StatusBadRequest, "Bad Request", "listing_id is required")
		return
	}
	in, err := parseDay("check_in_date", req.CheckIn)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := parseDay("check_out_date", req.CheckOut)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.Bookings.Create(r.Context(), app.CreateBooking{
		ListingID:  req.ListingID,
		GuestID:    currentUser(r),
		CheckIn:    in,
		CheckOut:   out,
		Guests:     req.Guests,
		TotalPrice: req.TotalPrice,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/bookings/"+strconv.FormatInt(b.ID, 10))
	writeJSON(w, http.StatusCreated, viewBooking(b))
}

func (h *Handlers) myBookings(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q := domain.BookingsQuery{GuestID: currentUser(r), Ordering: v.Get("ordering")}
	if s := v.Get("status"); s != "" {
		st := domain.BookingStatus(s)
		q.Status = &st
	}
	if s := v.Get("listing"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			writeProblem(w, http.StatusBadRequest, "Bad Request", "listing must be a positive integer")
			return
		}
		q.ListingID = &id
	}
	bs, err := h.Q.GuestBookings(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]bookingView, 0, len(bs))
	for _, b := range bs {
		out = append(out, viewBooking(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, h.Bookings.Get)
}

func (h *Handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, h.Bookings.Cancel)
}

func (h *Handlers) confirmBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, h.Bookings.Confirm)
}

func (h *Handlers) completeBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, h.Bookings.Complete)
}

func (h *Handlers) bookingAction(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id, actorID int64) (domain.Booking, error),
) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := fn(r.Context(), id, currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewBooking(b))
}
