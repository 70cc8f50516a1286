package httpadapter

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-Id"

type middleware func(http.Handler) http.Handler

// chain applies mws so that the first one sees the request first.
func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type requestIDContextKey struct{}

func requestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

// withRequestID honours a caller supplied X-Request-Id so that an ask can be
// followed from a chat frontend through the API log.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDContextKey{}, id)))
	})
}

func withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		client := r.RemoteAddr
		if host, _, err := net.SplitHostPort(client); err == nil {
			client = host
		}
		level := slog.LevelInfo
		switch {
		case rec.status >= http.StatusInternalServerError:
			level = slog.LevelError
		case rec.status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "http_request",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", rec.written,
			"remote_addr", client,
			"user_agent", r.UserAgent(),
		)
	})
}

// rateLimit rejects asks beyond the shared token bucket with 429.
// Retry-After is the time one token takes to refill, at least a second.
func rateLimit(limiter *rate.Limiter, onReject func(reason string)) middleware {
	retryAfter := "1"
	if limit := float64(limiter.Limit()); limit > 0 && limit < 1 {
		retryAfter = strconv.Itoa(int(math.Ceil(1 / limit)))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}
			onReject("rate_limit")
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		})
	}
}

// backpressure admits at most maxInFlight asks. Each ask holds a slot for
// retrieval, reranking and generation; a request waits up to wait for one
// and is answered 503 afterwards.
func backpressure(maxInFlight int, wait time.Duration, onReject func(reason string)) middleware {
	slots := semaphore.NewWeighted(int64(maxInFlight))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := acquireSlot(r.Context(), slots, wait); err != nil {
				if r.Context().Err() != nil {
					return
				}
				onReject("backpressure")
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusServiceUnavailable, "overloaded", "server is overloaded, retry later")
				return
			}
			defer slots.Release(1)
			next.ServeHTTP(w, r)
		})
	}
}

func acquireSlot(ctx context.Context, slots *semaphore.Weighted, wait time.Duration) error {
	if slots.TryAcquire(1) {
		return nil
	}
	if wait <= 0 {
		return context.DeadlineExceeded
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return slots.Acquire(waitCtx, 1)
}

type responseRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *responseRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func (w *responseRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
