package logging_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Amund211/beacon/internal/logging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRequestLoggerMiddleware(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, request *http.Request) (map[string]any, *httptest.ResponseRecorder) {
		t.Helper()

		lines := &jsonLines{}
		middleware := logging.NewRequestLoggerMiddleware(slog.New(slog.NewJSONHandler(lines, nil)))

		handler := middleware(func(w http.ResponseWriter, r *http.Request) {
			logging.FromContext(r.Context()).Info("test")
		})

		w := httptest.NewRecorder()
		handler(w, request)

		entries := lines.entries(t)
		require.Len(t, entries, 1)
		return entries[0], w
	}

	t.Run("all props", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/v1/resources/books?x=1", nil)
		req.Header.Set("X-User-Id", "user-id")
		req.Header.Set("User-Agent", "user-agent/1.0")
		req.Header.Set(logging.CorrelationIDHeader, "correlation")

		entry, w := run(t, req)

		require.Equal(t, map[string]any{
			"level":         "INFO",
			"msg":           "test",
			"correlationID": "correlation",
			"methodPath":    "GET /v1/resources/books",
			"userId":        "user-id",
			"userAgent":     "user-agent/1.0",
		}, entry)
		require.Equal(t, "correlation", w.Header().Get(logging.CorrelationIDHeader))
	})

	t.Run("missing props", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/v1/cache/invalidate", nil)
		req.Header.Del("User-Agent")

		entry, w := run(t, req)

		require.Equal(t, "<missing>", entry["userId"])
		require.Equal(t, "<missing>", entry["userAgent"])
		require.Equal(t, "POST /v1/cache/invalidate", entry["methodPath"])

		correlationID, ok := entry["correlationID"].(string)
		require.True(t, ok)
		_, err := uuid.Parse(correlationID)
		require.NoError(t, err)
		require.Equal(t, correlationID, w.Header().Get(logging.CorrelationIDHeader))
	})
}
