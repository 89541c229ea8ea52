package app_test

import (
	"testing"
	"time"

	"github.com/Amund211/beacon/internal/adapters/cache"
	"github.com/Amund211/beacon/internal/app"
	"github.com/Amund211/beacon/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidationPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		endpoint string
		expected string
	}{
		{endpoint: "/books", expected: "/books"},
		{endpoint: "/books/12", expected: "/books"},
		{endpoint: "/books/12/reviews/3", expected: "/books"},
		{endpoint: "/", expected: "/"},
	}

	for _, tc := range tests {
		t.Run(tc.endpoint, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expected, app.InvalidationPattern(tc.endpoint))
		})
	}
}

func TestBuildMutateResource(t *testing.T) {
	t.Parallel()

	now := time.Now()
	nowFunc := func() time.Time {
		return now
	}

	setup := func(t *testing.T) (*mockResourceAPI, app.GetResource, app.MutateResource) {
		api := newMockResourceAPI(t, echoResponse(now))
		coordinator := newCoordinator(t, time.Minute, nowFunc)
		return api, app.BuildGetResourceWithCache(coordinator, api), app.BuildMutateResource(coordinator, api)
	}

	warm := func(t *testing.T, getResource app.GetResource) {
		for _, endpoint := range []string{"/books", "/books/12", "/authors"} {
			_, err := getResource(t.Context(), endpoint, cache.Params{"page": 1})
			require.NoError(t, err)
		}
	}

	t.Run("success invalidates the collection", func(t *testing.T) {
		t.Parallel()

		api, getResource, mutateResource := setup(t)
		api.sendResponse = domain.Response{Data: []byte(`{"id":12}`), StatusCode: 200, ContentType: "application/json"}
		warm(t, getResource)

		response, err := mutateResource(t.Context(), "PATCH", "/books/12", []byte(`{"title":"new"}`), "application/json")
		require.NoError(t, err)
		require.Equal(t, `{"id":12}`, string(response.Data))
		require.Equal(t, []sendCall{{
			method:      "PATCH",
			endpoint:    "/books/12",
			body:        `{"title":"new"}`,
			contentType: "application/json",
		}}, api.sendCalls)

		warm(t, getResource)

		// Both /books entries were refetched, /authors stayed cached
		require.Equal(t, 2, api.getCallCount("/books?page=1"))
		require.Equal(t, 2, api.getCallCount("/books/12?page=1"))
		require.Equal(t, 1, api.getCallCount("/authors?page=1"))
	})

	t.Run("failure keeps the cache", func(t *testing.T) {
		t.Parallel()

		api, getResource, mutateResource := setup(t)
		api.sendErr = &domain.StatusError{StatusCode: 409}
		warm(t, getResource)

		_, err := mutateResource(t.Context(), "DELETE", "/books/12", nil, "")
		var statusErr *domain.StatusError
		require.ErrorAs(t, err, &statusErr)

		warm(t, getResource)
		require.Equal(t, 3, api.totalGetCalls())
	})

	t.Run("only mutating methods", func(t *testing.T) {
		t.Parallel()

		api, _, mutateResource := setup(t)

		for _, method := range []string{"GET", "HEAD", "OPTIONS", "TRACE"} {
			_, err := mutateResource(t.Context(), method, "/books", nil, "")
			assert.ErrorIs(t, err, app.ErrMethodNotAllowed, method)
		}
		for _, method := range []string{"POST", "PUT", "PATCH", "DELETE"} {
			_, err := mutateResource(t.Context(), method, "/books", nil, "")
			assert.NoError(t, err, method)
		}

		require.Len(t, api.sendCalls, 4)
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		t.Parallel()

		api, _, mutateResource := setup(t)

		_, err := mutateResource(t.Context(), "POST", "books", nil, "")
		require.ErrorIs(t, err, app.ErrInvalidEndpoint)
		require.Empty(t, api.sendCalls)
	})
}

func TestBuildInvalidate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	api := newMockResourceAPI(t, echoResponse(now))
	coordinator := newCoordinator(t, time.Minute, func() time.Time { return now })
	getResource := app.BuildGetResourceWithCache(coordinator, api)
	invalidate := app.BuildInvalidate(coordinator)

	for _, endpoint := range []string{"/a", "/b", "/c"} {
		_, err := getResource(t.Context(), endpoint, cache.Params{"x": 1})
		require.NoError(t, err)
	}

	require.Equal(t, 1, invalidate(t.Context(), "/a"))
	require.Equal(t, 0, invalidate(t.Context(), "/a"))
	require.Equal(t, 2, invalidate(t.Context(), ""))
}
