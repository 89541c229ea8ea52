package ports

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/Amund211/beacon/internal/logging"
	"github.com/Amund211/beacon/internal/ratelimiting"
	"github.com/Amund211/beacon/internal/reporting"
)

func NewRateLimitMiddleware(rateLimiter ratelimiting.RequestRateLimiter, onLimitExceeded http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rateLimiter.Consume(r) {
				logging.FromContext(r.Context()).InfoContext(r.Context(), "Rate limit exceeded", "key", rateLimiter.KeyFor(r))
				onLimitExceeded(w, r)
				return
			}

			next(w, r)
		}
	}
}

const adminKeyHeader = "X-Admin-Key"

// NewAdminKeyMiddleware lets through only requests that carry adminKey in the X-Admin-Key header.
// An empty adminKey rejects everything.
func NewAdminKeyMiddleware(adminKey string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			provided := r.Header.Get(adminKeyHeader)
			if adminKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey)) != 1 {
				logging.FromContext(ctx).InfoContext(ctx, "Rejected admin request", "hasKey", provided != "")
				writeErrorResponse(ctx, w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next(w, r)
		}
	}
}

func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	if len(middlewares) == 0 {
		return func(h http.HandlerFunc) http.HandlerFunc {
			return h
		}
	}
	if len(middlewares) == 1 {
		return middlewares[0]
	}
	first := middlewares[0]
	rest := ComposeMiddlewares(middlewares[1:]...)
	return func(h http.HandlerFunc) http.HandlerFunc {
		return first(rest(h))
	}
}

// HandlerDeps are shared by every handler
type HandlerDeps struct {
	RootLogger       *slog.Logger
	AllowedOrigins   *DomainSuffixes
	SentryMiddleware func(http.HandlerFunc) http.HandlerFunc
	// NOTE: One budget per client across all routes
	IPRateLimiter ratelimiting.RequestRateLimiter
	AdminAPIKey   string
}

func (deps HandlerDeps) middleware(port string) func(http.HandlerFunc) http.HandlerFunc {
	return ComposeMiddlewares(
		buildMetricsMiddleware(port),
		logging.NewRequestLoggerMiddleware(deps.RootLogger.With("port", port)),
		deps.SentryMiddleware,
		reporting.NewAddMetaMiddleware(port),
		BuildCORSMiddleware(deps.AllowedOrigins),
		NewRateLimitMiddleware(deps.IPRateLimiter, onLimitExceeded),
	)
}

// adminMiddleware is middleware plus the admin key check. Rate limiting runs first, so key guesses count.
func (deps HandlerDeps) adminMiddleware(port string) func(http.HandlerFunc) http.HandlerFunc {
	return ComposeMiddlewares(
		deps.middleware(port),
		NewAdminKeyMiddleware(deps.AdminAPIKey),
	)
}

func onLimitExceeded(w http.ResponseWriter, r *http.Request) {
	writeErrorResponse(r.Context(), w, "rate limit exceeded", http.StatusTooManyRequests)
}
