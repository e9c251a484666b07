package handler

import (
	"bytes"
	"net/http"

	"github.com/boddenberg/account-ledger/internal/infra/observability"
	"github.com/boddenberg/account-ledger/internal/port"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Idempotency headers.
const (
	IdempotencyKeyHeader    = "Idempotency-Key"
	IdempotentReplayHeader  = "Idempotent-Replay"
	maxIdempotencyKeyLength = 128
)

// CachedResponse is a response remembered under an idempotency key.
// Pending marks a key whose first request is still running.
type CachedResponse struct {
	Status  int
	Body    []byte
	Pending bool
}

// IdempotencyCache stores responses by idempotency key. SetIfAbsent must
// be atomic so two concurrent requests cannot both claim a key.
type IdempotencyCache interface {
	port.Cache[*CachedResponse]
	SetIfAbsent(key string, value *CachedResponse) bool
}

// IdempotencyMiddleware replays the first successful response for a
// repeated Idempotency-Key instead of running the handler again. Requests
// without the header pass through. Failed responses are not remembered so
// the caller may retry them.
func IdempotencyMiddleware(cache IdempotencyCache, metrics *observability.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" || cache == nil {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLength {
				writeError(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}
			scoped := r.Method + " " + r.URL.Path + " " + key

			if cached, ok := cache.Get(scoped); ok {
				if cached.Pending {
					writeError(w, http.StatusConflict, "a request with this Idempotency-Key is still in progress")
					return
				}
				logger.Info("idempotent replay",
					zap.String("idempotency_key", key),
					zap.String("path", r.URL.Path),
				)
				metrics.IncrIdempotentReplay()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(IdempotentReplayHeader, "true")
				w.WriteHeader(cached.Status)
				w.Write(cached.Body)
				return
			}

			if !cache.SetIfAbsent(scoped, &CachedResponse{Pending: true}) {
				writeError(w, http.StatusConflict, "a request with this Idempotency-Key is still in progress")
				return
			}

			var body bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)

			completed := false
			defer func() {
				// release the key when the handler panicked
				if !completed {
					cache.Delete(scoped)
				}
			}()

			next.ServeHTTP(ww, r)
			completed = true

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= 200 && status < 300 {
				cache.Set(scoped, &CachedResponse{Status: status, Body: body.Bytes()})
				return
			}
			cache.Delete(scoped)
		})
	}
}
