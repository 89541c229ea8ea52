package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Amund211/beacon/internal/adapters/cache"
	"golang.org/x/sync/errgroup"
)

type ResourceRequest struct {
	Endpoint string
	Params   cache.Params
}

// WarmResources fetches requests through the cache so later reads are hits.
// Returns how many requests succeeded, and every failure joined together.
type WarmResources func(ctx context.Context, requests []ResourceRequest) (int, error)

func BuildWarmResources(getResource GetResource, concurrency int) WarmResources {
	return func(ctx context.Context, requests []ResourceRequest) (int, error) {
		var warmed atomic.Int64
		errs := make([]error, len(requests))

		var g errgroup.Group
		g.SetLimit(concurrency)
		for i, request := range requests {
			g.Go(func() error {
				if _, err := getResource(ctx, request.Endpoint, request.Params); err != nil {
					errs[i] = fmt.Errorf("failed to warm %s: %w", cache.BuildKey(request.Endpoint, request.Params), err)
					// One failure must not stop the rest of the batch
					return nil
				}
				warmed.Add(1)
				return nil
			})
		}
		_ = g.Wait()

		return int(warmed.Load()), errors.Join(errs...)
	}
}
