package app_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Amund211/beacon/internal/adapters/cache"
	"github.com/Amund211/beacon/internal/domain"
	"github.com/stretchr/testify/assert"
)

type sendCall struct {
	method      string
	endpoint    string
	body        string
	contentType string
}

type mockResourceAPI struct {
	t *testing.T

	mu sync.Mutex

	getCalls map[string]int
	// Blocks every Get until closed, when set
	getRelease chan struct{}
	getFunc    func(endpoint string, query url.Values) (domain.Response, error)

	sendCalls    []sendCall
	sendResponse domain.Response
	sendErr      error
}

func newMockResourceAPI(t *testing.T, getFunc func(endpoint string, query url.Values) (domain.Response, error)) *mockResourceAPI {
	return &mockResourceAPI{
		t:        t,
		getCalls: map[string]int{},
		getFunc:  getFunc,
	}
}

func (m *mockResourceAPI) Get(ctx context.Context, endpoint string, query url.Values) (domain.Response, error) {
	// Runs on the coordinator's goroutine, so assert rather than require
	_, hasDeadline := ctx.Deadline()
	assert.True(m.t, hasDeadline)

	m.mu.Lock()
	m.getCalls[endpoint+"?"+query.Encode()]++
	release := m.getRelease
	m.mu.Unlock()

	if release != nil {
		<-release
	}

	return m.getFunc(endpoint, query)
}

func (m *mockResourceAPI) Send(ctx context.Context, method string, endpoint string, body []byte, contentType string) (domain.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sendCalls = append(m.sendCalls, sendCall{
		method:      method,
		endpoint:    endpoint,
		body:        string(body),
		contentType: contentType,
	})
	return m.sendResponse, m.sendErr
}

func (m *mockResourceAPI) getCallCount(requestURI string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls[requestURI]
}

func (m *mockResourceAPI) totalGetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, count := range m.getCalls {
		total += count
	}
	return total
}

func echoResponse(now time.Time) func(endpoint string, query url.Values) (domain.Response, error) {
	return func(endpoint string, query url.Values) (domain.Response, error) {
		return domain.Response{
			Data:        []byte(endpoint + "?" + query.Encode()),
			StatusCode:  200,
			ContentType: "application/json",
			QueriedAt:   now,
		}, nil
	}
}

func newCoordinator(t *testing.T, ttl time.Duration, nowFunc func() time.Time) *cache.Coordinator[domain.Response] {
	t.Helper()

	coordinator := cache.NewCoordinator[domain.Response](ttl, cache.WithNowFunc(nowFunc))
	t.Cleanup(coordinator.Stop)
	return coordinator
}
