package httpserver

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"staybook/internal/adapters/auth"
	"staybook/internal/adapters/observability"
)

func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return http.TimeoutHandler(next, d, "timeout") }
}

// ---- status-recording ResponseWriter ----

type srw struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *srw) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *srw) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *srw) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// ---- Metrics middleware ----

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &srw{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		observability.ObserveHTTP(route, r.Method, sw.Status(), time.Since(start))
	})
}

// ---- Structured logging middleware ----

func Logger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &srw{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}
			ev := l.Info()
			if sw.Status() >= 500 {
				ev = l.Error()
			}
			ev.
				Str("route", route).
				Str("method", r.Method).
				Int("status", sw.Status()).
				Dur("duration", time.Since(start)).
				Str("remote", remoteIP(r)).
				Str("ua", r.UserAgent()).
				Msg("http_request")
		})
	}
}

// remoteIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func remoteIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// ---- Authentication ----

// RequireUser rejects requests without a valid bearer token and stores the
// token's user id in the request context.
func RequireUser(tk *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="staybook"`)
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "authentication credentials were not provided")
				return
			}
			uid, err := tk.Verify(strings.TrimSpace(raw))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="staybook", error="invalid_token"`)
				writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), uid)))
		})
	}
}

// ---- Write rate limiting ----

const limiterIdle = 10 * time.Minute

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// clientLimiters drops callers idle for longer than idle, checked at most
// once per idle period.
type clientLimiters struct {
	mu        sync.Mutex
	rps       int
	idle      time.Duration
	now       func() time.Time
	lastSweep time.Time
	byID      map[string]*clientLimiter
}

func newClientLimiters(rps int, idle time.Duration) *clientLimiters {
	return &clientLimiters{rps: rps, idle: idle, now: time.Now, byID: map[string]*clientLimiter{}}
}

func (c *clientLimiters) get(key string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.lastSweep) >= c.idle {
		for k, cl := range c.byID {
			if now.Sub(cl.seen) >= c.idle {
				delete(c.byID, k)
			}
		}
		c.lastSweep = now
	}
	cl, ok := c.byID[key]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(rate.Limit(c.rps), c.rps)}
		c.byID[key] = cl
	}
	cl.seen = now
	return cl.lim
}

// WriteLimit allows each caller rps mutating requests per second. Callers are
// keyed by user id when authenticated, else by remote address. rps <= 0
// disables the limit.
func WriteLimit(rps int) func(http.Handler) http.Handler {
	cl := newClientLimiters(rps, limiterIdle)
	return func(next http.Handler) http.Handler {
		if rps <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			key := "ip:" + remoteIP(r)
			if uid, ok := auth.UserID(r.Context()); ok {
				key = "user:" + strconv.FormatInt(uid, 10)
			}
			if !cl.get(key).Allow() {
				w.Header().Set("Retry-After", "1")
				writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "write rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
