package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/Amund211/beacon/internal/adapters/cache"
	"github.com/Amund211/beacon/internal/domain"
)

var ErrInvalidEndpoint = errors.New("invalid endpoint")

type GetResource func(ctx context.Context, endpoint string, params cache.Params) (domain.Response, error)

type resourceGetter interface {
	Get(ctx context.Context, endpoint string, query url.Values) (domain.Response, error)
}

func validateEndpoint(endpoint string) error {
	if !strings.HasPrefix(endpoint, "/") {
		return fmt.Errorf("%w: must start with /: %q", ErrInvalidEndpoint, endpoint)
	}
	if strings.ContainsAny(endpoint, "?#") {
		return fmt.Errorf("%w: must not contain a query or fragment: %q", ErrInvalidEndpoint, endpoint)
	}
	for segment := range strings.SplitSeq(endpoint, "/") {
		if segment == ".." {
			return fmt.Errorf("%w: must not traverse upwards: %q", ErrInvalidEndpoint, endpoint)
		}
	}
	return nil
}

func buildGetResourceWithoutCache(
	api resourceGetter,
) func(ctx context.Context, endpoint string, params cache.Params) (domain.Response, error) {
	return func(ctx context.Context, endpoint string, params cache.Params) (domain.Response, error) {
		// The coordinator detaches us from the caller's cancellation, so bound the request here
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		response, err := api.Get(ctx, endpoint, params.Values())
		if err != nil {
			// NOTE: API implementations handle their own error reporting
			return domain.Response{}, fmt.Errorf("could not get resource: %w", err)
		}

		return response, nil
	}
}

func BuildGetResourceWithCache(
	coordinator *cache.Coordinator[domain.Response],
	api resourceGetter,
) GetResource {
	getResourceWithoutCache := buildGetResourceWithoutCache(api)

	return func(ctx context.Context, endpoint string, params cache.Params) (domain.Response, error) {
		if err := validateEndpoint(endpoint); err != nil {
			return domain.Response{}, err
		}

		key := cache.BuildKey(endpoint, params)

		response, err := coordinator.Execute(ctx, key, func(ctx context.Context) (domain.Response, error) {
			return getResourceWithoutCache(ctx, endpoint, params)
		})
		if err != nil {
			// NOTE: Execute passes errors from the operation through unchanged.
			// getResourceWithoutCache handles its own error reporting
			return domain.Response{}, fmt.Errorf("failed to coordinator.Execute resource: %w", err)
		}

		// Callers own the returned Data; the cached one is shared with later hits
		response.Data = slices.Clone(response.Data)

		return response, nil
	}
}
