package ports_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Amund211/beacon/internal/ports"
	"github.com/stretchr/testify/require"
)

const PROD_DOMAIN_SUFFIX = "beacon-dashboard.com"
const STAGING_DOMAIN_SUFFIX = "beacon-ui.pages.dev"

type originRule struct {
	origin  string
	allowed bool
}

func TestNewDomainSuffixes(t *testing.T) {
	t.Parallel()

	for _, suffix := range []string{"", ".example.com", "https://example.com"} {
		_, err := ports.NewDomainSuffixes("example.org", suffix)
		require.Error(t, err, suffix)
	}

	_, err := ports.NewDomainSuffixes()
	require.NoError(t, err)
}

func TestCORS(t *testing.T) {
	t.Parallel()
	allowedOrigins, err := ports.NewDomainSuffixes(
		PROD_DOMAIN_SUFFIX,
		STAGING_DOMAIN_SUFFIX,
	)
	require.NoError(t, err)

	cases := []originRule{
		// Prod
		{origin: "https://beacon-dashboard.com", allowed: true},
		{origin: "https://www.beacon-dashboard.com", allowed: true},
		// Staging
		{origin: "https://53bcd591.beacon-ui.pages.dev", allowed: true},
		{origin: "https://feature-x.beacon-ui.pages.dev", allowed: true},
		{origin: "https://beacon-ui.pages.dev", allowed: true},
		// Other pages
		{origin: "example.com", allowed: false},
		{origin: "https://example.com", allowed: false},
		{origin: "https://www.example.com", allowed: false},
		// Similar-looking domains
		{origin: "https://beacondashboard.com", allowed: false},
		{origin: "https://mybeacon-dashboard.com", allowed: false},
		{origin: "https://www.mybeacon-dashboard.com", allowed: false},
		{origin: "https://superbeacon-ui.pages.dev", allowed: false},
		{origin: "https://something.otherbeacon-ui.pages.dev", allowed: false},
		{origin: "https://beacon-dashboard.com.evil.com", allowed: false},
		// Wrong scheme
		{origin: "http://beacon-dashboard.com", allowed: false},
		{origin: "http://www.beacon-dashboard.com", allowed: false},
		// Weird cases
		{origin: "", allowed: false},
		{origin: "beacon-dashboard", allowed: false},
		{origin: "dashboard.com", allowed: false},
		{origin: "beacon-dashboard.com", allowed: false},
		{origin: "pages.dev", allowed: false},
	}

	runCORSTest := func(t *testing.T, handler http.HandlerFunc, method string, c originRule, handlerStatusCode int, handlerBody []byte) {
		req := httptest.NewRequest(method, "https://api-url.com", nil)
		req.Header.Set("Origin", c.origin)
		w := httptest.NewRecorder()

		handler(w, req)

		resp := w.Result()

		// The handler is allowed to run when the method is not OPTIONS
		if method != "OPTIONS" {
			require.Equal(t, handlerStatusCode, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, handlerBody, body)
		}

		// CORS
		if c.allowed {
			require.Equal(t, c.origin, resp.Header.Get("Access-Control-Allow-Origin"))
			require.Equal(t, "X-Correlation-Id", resp.Header.Get("Access-Control-Expose-Headers"))

			if method == "OPTIONS" {
				require.Equal(t, http.StatusNoContent, resp.StatusCode)
				require.Equal(t, "GET,POST,PUT,PATCH,DELETE", resp.Header.Get("Access-Control-Allow-Methods"))
				require.Equal(t, "Content-Type, X-User-Id, X-Correlation-Id", resp.Header.Get("Access-Control-Allow-Headers"))
			} else {
				require.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
				require.Empty(t, resp.Header.Get("Access-Control-Allow-Headers"))
			}
		} else {
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Headers"))
		}
	}

	t.Run("BuildCORSMiddleware", func(t *testing.T) {
		middleware := ports.BuildCORSMiddleware(allowedOrigins)

		handler := middleware(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(200)
				w.Write([]byte("Hello, world!"))
			},
		)

		for _, c := range cases {
			t.Run(fmt.Sprintf("Origin:'%s'", c.origin), func(t *testing.T) {
				t.Parallel()
				for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"} {
					t.Run(method, func(t *testing.T) {
						t.Parallel()

						runCORSTest(t, handler, method, c, 200, []byte("Hello, world!"))
					})
				}
			})
		}
	})

	t.Run("BuildCORSHandler", func(t *testing.T) {
		handler := ports.BuildCORSHandler(allowedOrigins)

		for _, c := range cases {
			t.Run(fmt.Sprintf("Origin:'%s'", c.origin), func(t *testing.T) {
				t.Parallel()
				for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"} {
					t.Run(method, func(t *testing.T) {
						t.Parallel()

						runCORSTest(t, handler, method, c, 204, []byte{})
					})
				}
			})
		}
	})
}
