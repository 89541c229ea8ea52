package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Amund211/beacon/internal/config"
	"github.com/Amund211/beacon/internal/constants"
	"github.com/Amund211/beacon/internal/domain"
	"github.com/Amund211/beacon/internal/logging"
	"github.com/Amund211/beacon/internal/reporting"
	"golang.org/x/time/rate"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Limiter throttles requests sent upstream. Satisfied by *rate.Limiter.
type Limiter interface {
	Wait(ctx context.Context) error
}

type API interface {
	// Raises domain.ErrNotFound if the upstream has nothing at endpoint
	//
	// Raises domain.ErrTemporarilyUnavailable if the upstream is rate limiting us or is down. The call may be retried later.
	//
	// Raises *domain.StatusError for any other non-2xx response
	Get(ctx context.Context, endpoint string, query url.Values) (domain.Response, error)

	// Send forwards a mutating request. Errors are raised like for Get.
	Send(ctx context.Context, method string, endpoint string, body []byte, contentType string) (domain.Response, error)
}

type httpAPI struct {
	httpClient HttpClient
	baseURL    *url.URL
	apiKey     string
	limiter    Limiter
	nowFunc    func() time.Time
}

func NewAPI(httpClient HttpClient, baseURL string, apiKey string, limiter Limiter, nowFunc func() time.Time) (API, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse upstream base url: %w", err)
	}

	return &httpAPI{
		httpClient: httpClient,
		baseURL:    parsed,
		apiKey:     apiKey,
		limiter:    limiter,
		nowFunc:    nowFunc,
	}, nil
}

func NewAPIOrMock(conf config.Config, httpClient HttpClient) (API, error) {
	limiter := rate.NewLimiter(rate.Limit(conf.UpstreamRequestsPerSecond()), conf.UpstreamBurst())

	if conf.UpstreamBaseURL() != "" {
		return NewAPI(httpClient, conf.UpstreamBaseURL(), conf.UpstreamAPIKey(), limiter, time.Now)
	}
	if conf.IsDevelopment() {
		return NewMockedAPI(time.Now), nil
	}
	return nil, fmt.Errorf("%w: upstream base url is required outside development", config.ErrMissingRequiredValue)
}

func (a *httpAPI) Get(ctx context.Context, endpoint string, query url.Values) (domain.Response, error) {
	return a.do(ctx, http.MethodGet, endpoint, query, nil, "")
}

func (a *httpAPI) Send(ctx context.Context, method string, endpoint string, body []byte, contentType string) (domain.Response, error) {
	return a.do(ctx, method, endpoint, nil, body, contentType)
}

func (a *httpAPI) do(ctx context.Context, method string, endpoint string, query url.Values, body []byte, contentType string) (domain.Response, error) {
	logger := logging.FromContext(ctx)

	target := a.baseURL.JoinPath(endpoint)
	target.RawQuery = query.Encode()

	if err := a.limiter.Wait(ctx); err != nil {
		// NOTE: Not reported. This is our own throttling.
		return domain.Response{}, fmt.Errorf("%w: waiting for upstream rate limit: %w", domain.ErrTemporarilyUnavailable, err)
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return domain.Response{}, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set("API-Key", a.apiKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := a.nowFunc()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.Response{}, fmt.Errorf("failed to send request: %w", err)
		}
		err := fmt.Errorf("%w: failed to send request: %w", domain.ErrTemporarilyUnavailable, err)
		reporting.Report(ctx, err)
		return domain.Response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("%w: failed to read response body: %w", domain.ErrTemporarilyUnavailable, err)
		reporting.Report(ctx, err)
		return domain.Response{}, err
	}
	queriedAt := a.nowFunc()

	logger.InfoContext(ctx, "upstream request completed",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration", queriedAt.Sub(start).String(),
	)

	response, err := responseFromUpstream(resp.StatusCode, resp.Header.Get("Content-Type"), data, queriedAt)
	if err != nil {
		var statusErr *domain.StatusError
		if errors.Is(err, domain.ErrNotFound) || errors.As(err, &statusErr) {
			// Client errors are passed through, not reported
			return domain.Response{}, err
		}

		reporting.Report(ctx, err, map[string]string{
			"status":   strconv.Itoa(resp.StatusCode),
			"endpoint": endpoint,
		})
		return domain.Response{}, err
	}

	return response, nil
}

func responseFromUpstream(statusCode int, contentType string, data []byte, queriedAt time.Time) (domain.Response, error) {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return domain.Response{}, fmt.Errorf("%w: upstream returned status code %d", domain.ErrTemporarilyUnavailable, statusCode)
	case http.StatusNotFound:
		return domain.Response{}, domain.ErrNotFound
	}

	if statusCode < 200 || statusCode >= 300 {
		return domain.Response{}, &domain.StatusError{
			StatusCode:  statusCode,
			Data:        data,
			ContentType: contentType,
		}
	}

	if contentType == "" {
		contentType = "application/json"
	}

	return domain.Response{
		Data:        data,
		StatusCode:  statusCode,
		ContentType: contentType,
		QueriedAt:   queriedAt,
	}, nil
}

type mockedAPI struct {
	nowFunc func() time.Time
}

// NewMockedAPI echoes every request back as JSON. Used for local development without an upstream.
func NewMockedAPI(nowFunc func() time.Time) API {
	return &mockedAPI{nowFunc: nowFunc}
}

func (m *mockedAPI) respond(method string, endpoint string, query url.Values) (domain.Response, error) {
	data, err := json.Marshal(map[string]any{
		"success":  true,
		"method":   method,
		"endpoint": endpoint,
		"query":    query,
	})
	if err != nil {
		return domain.Response{}, fmt.Errorf("failed to marshal mocked response: %w", err)
	}

	return domain.Response{
		Data:        data,
		StatusCode:  http.StatusOK,
		ContentType: "application/json",
		QueriedAt:   m.nowFunc(),
	}, nil
}

func (m *mockedAPI) Get(ctx context.Context, endpoint string, query url.Values) (domain.Response, error) {
	return m.respond(http.MethodGet, endpoint, query)
}

func (m *mockedAPI) Send(ctx context.Context, method string, endpoint string, body []byte, contentType string) (domain.Response, error) {
	return m.respond(method, endpoint, nil)
}
