package ports_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Amund211/beacon/internal/ports"
	"github.com/Amund211/beacon/internal/ratelimiting"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "test-admin-key"

type allowAllRateLimiter struct {
	allow bool
}

func (m *allowAllRateLimiter) Consume(key string) bool {
	return m.allow
}

func newHandlerDeps(t *testing.T, allow bool) ports.HandlerDeps {
	t.Helper()

	allowedOrigins, err := ports.NewDomainSuffixes(PROD_DOMAIN_SUFFIX)
	require.NoError(t, err)

	return ports.HandlerDeps{
		RootLogger:     slog.New(slog.NewJSONHandler(io.Discard, nil)),
		AllowedOrigins: allowedOrigins,
		SentryMiddleware: func(next http.HandlerFunc) http.HandlerFunc {
			return next
		},
		IPRateLimiter: ratelimiting.NewRequestBasedRateLimiter(&allowAllRateLimiter{allow: allow}, ratelimiting.IPKeyFunc),
		AdminAPIKey:   testAdminKey,
	}
}

func newAdminRequest(target string, body string) *http.Request {
	request := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	request.Header.Set("X-Admin-Key", testAdminKey)
	return request
}
