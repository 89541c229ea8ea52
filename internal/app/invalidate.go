package app

import (
	"context"

	"github.com/Amund211/beacon/internal/adapters/cache"
	"github.com/Amund211/beacon/internal/domain"
)

// Invalidate drops every cached response whose key contains pattern. The empty pattern drops everything.
type Invalidate func(ctx context.Context, pattern string) int

func BuildInvalidate(coordinator *cache.Coordinator[domain.Response]) Invalidate {
	return func(ctx context.Context, pattern string) int {
		return coordinator.Invalidate(ctx, pattern)
	}
}
