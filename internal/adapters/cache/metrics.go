package cache

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type cacheMetricsCollection struct {
	lookups           metric.Int64Counter
	operationFailures metric.Int64Counter
	invalidated       metric.Int64Counter
}

var metrics cacheMetricsCollection

func init() {
	const name = "beacon/cache"
	meter := otel.Meter(name)

	lookups, err := meter.Int64Counter(
		"cache/lookups",
		metric.WithDescription("Coordinator lookups by result (hit, miss, join)"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create lookups metric: %w", err))
	}

	operationFailures, err := meter.Int64Counter(
		"cache/operation_failures",
		metric.WithDescription("Operations that settled with an error"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create operation failures metric: %w", err))
	}

	invalidated, err := meter.Int64Counter(
		"cache/invalidated_entries",
		metric.WithDescription("Entries removed by explicit invalidation"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create invalidated entries metric: %w", err))
	}

	metrics = cacheMetricsCollection{
		lookups:           lookups,
		operationFailures: operationFailures,
		invalidated:       invalidated,
	}
}

type lookupResult string

const (
	lookupHit  lookupResult = "hit"
	lookupMiss lookupResult = "miss"
	lookupJoin lookupResult = "join"
)

func recordLookup(ctx context.Context, result lookupResult) {
	metrics.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", string(result))))
}
