package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Amund211/beacon/internal/adapters/cache"
	"github.com/Amund211/beacon/internal/domain"
	"github.com/Amund211/beacon/internal/logging"
)

var ErrMethodNotAllowed = errors.New("method not allowed")

type MutateResource func(ctx context.Context, method string, endpoint string, body []byte, contentType string) (domain.Response, error)

type resourceSender interface {
	Send(ctx context.Context, method string, endpoint string, body []byte, contentType string) (domain.Response, error)
}

// InvalidationPattern is the pattern invalidated after a successful mutation of endpoint:
// everything under the endpoint's first path segment.
//
// Matching is by substring, so "/books" also drops "/bookshelves" and any key with "/books" in a parameter.
func InvalidationPattern(endpoint string) string {
	first, _, _ := strings.Cut(strings.TrimPrefix(endpoint, "/"), "/")
	return "/" + first
}

func BuildMutateResource(
	coordinator *cache.Coordinator[domain.Response],
	api resourceSender,
) MutateResource {
	return func(ctx context.Context, method string, endpoint string, body []byte, contentType string) (domain.Response, error) {
		switch method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			return domain.Response{}, fmt.Errorf("%w: %s", ErrMethodNotAllowed, method)
		}

		if err := validateEndpoint(endpoint); err != nil {
			return domain.Response{}, err
		}

		sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		response, err := api.Send(sendCtx, method, endpoint, body, contentType)
		if err != nil {
			// NOTE: API implementations handle their own error reporting
			return domain.Response{}, fmt.Errorf("could not send %s to resource: %w", method, err)
		}

		pattern := InvalidationPattern(endpoint)
		removed := coordinator.Invalidate(ctx, pattern)
		logging.FromContext(ctx).InfoContext(ctx, "Invalidated after mutation", "method", method, "endpoint", endpoint, "pattern", pattern, "removed", removed)

		return response, nil
	}
}
