package notify

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"staybook/internal/adapters/observability"
	"staybook/internal/domain"
)

var ErrRejected = errors.New("webhook: rejected")

// Webhook POSTs each event as JSON to a single endpoint.
type Webhook struct {
	url string
	hc  *http.Client
	rl  *rate.Limiter
	now func() time.Time
}

func NewWebhook(url string, rps int) (*Webhook, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Webhook{
		url: url,
		hc:  &http.Client{Timeout: 10 * time.Second},
		rl:  rate.NewLimiter(rate.Limit(rps), rps),
		now: time.Now,
	}, nil
}

func (w *Webhook) BookingCreated(ctx context.Context, b domain.Booking) error {
	return w.post(ctx, newEvent(KeyBookingCreated, BookingData{Booking: b}, w.now()))
}

func (w *Webhook) BookingStatusChanged(ctx context.Context, b domain.Booking, from domain.BookingStatus) error {
	return w.post(ctx, newEvent(KeyBookingStatusChanged, BookingData{Booking: b, From: from}, w.now()))
}

func (w *Webhook) ReviewAdded(ctx context.Context, r domain.Review) error {
	return w.post(ctx, newEvent(KeyReviewCreated, r, w.now()))
}

// post delivers e with client-side rate limiting. 429 and transient 5xx are
// retried, honoring Retry-After when the receiver sends one.
func (w *Webhook) post(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := w.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "staybook/1.0")
		req.Header.Set("X-Event-ID", e.ID)
		req.Header.Set("X-Event-Type", e.Type)

		start := time.Now()
		resp, err := w.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("webhook", e.Type, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("webhook", e.Type, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("webhook %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After in either seconds or HTTP-date form.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	return base + time.Duration(0.5*float64(b[0])/255.0*float64(base))
}
