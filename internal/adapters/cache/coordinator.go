package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Amund211/beacon/internal/logging"
)

const DefaultTTL = 30 * time.Second

var ErrOperationPanicked = errors.New("operation panicked")

type Operation[T any] func(ctx context.Context) (T, error)

// Coordinator collapses concurrent identical requests into one operation and serves
// successful results from memory until they are older than the TTL.
//
// Results are shared: every caller joining an operation, and every later hit, gets the same value.
// Treat them as read-only, or copy reference types before handing them out.
//
// Construct one per upstream in the composition root and share it between call sites.
type Coordinator[T any] struct {
	mu        sync.Mutex
	pending   *pendingTable[T]
	responses *responseCache[T]

	stopOnce sync.Once
}

type coordinatorOptions struct {
	nowFunc func() time.Time
}

type Option func(*coordinatorOptions)

// WithNowFunc replaces the clock used to decide whether a cached result is still fresh
func WithNowFunc(nowFunc func() time.Time) Option {
	return func(o *coordinatorOptions) {
		o.nowFunc = nowFunc
	}
}

// NewCoordinator creates a Coordinator whose cached results stay fresh for ttl.
// A non-positive ttl disables the response cache; concurrent requests are still coalesced.
//
// Call Stop when the Coordinator is no longer needed to release the cache's cleanup goroutine.
func NewCoordinator[T any](ttl time.Duration, opts ...Option) *Coordinator[T] {
	options := coordinatorOptions{
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Coordinator[T]{
		pending:   newPendingTable[T](),
		responses: newResponseCache[T](ttl, options.nowFunc),
	}
}

// Execute returns the cached result for key if it is fresh. Otherwise it joins the operation
// already in flight for key, or starts operation if there is none.
//
// operation runs detached from the cancellation of ctx: a caller that gives up gets ctx.Err(),
// while everyone else waiting on the same key still receives the operation's result.
// Errors from operation are returned unchanged and are never cached.
func (c *Coordinator[T]) Execute(ctx context.Context, key Key, operation Operation[T]) (T, error) {
	logger := logging.FromContext(ctx)

	c.mu.Lock()
	if data, ok := c.responses.get(key); ok {
		c.mu.Unlock()
		recordLookup(ctx, lookupHit)
		logger.InfoContext(ctx, "Executing request", "key", string(key), "cache", "hit")
		return data, nil
	}

	call, inFlight := c.pending.get(key)
	if inFlight {
		call.joined++
	} else {
		call = newPendingCall[T]()
		c.pending.set(key, call)
	}
	c.mu.Unlock()

	if inFlight {
		recordLookup(ctx, lookupJoin)
		logger.InfoContext(ctx, "Waiting for in-flight request", "key", string(key), "cache", "join")
	} else {
		recordLookup(ctx, lookupMiss)
		logger.InfoContext(ctx, "Executing request", "key", string(key), "cache", "miss")
		go c.run(context.WithoutCancel(ctx), key, call, operation)
	}

	select {
	case <-call.done:
		return call.data, call.err
	case <-ctx.Done():
		var empty T
		return empty, ctx.Err()
	}
}

func (c *Coordinator[T]) run(ctx context.Context, key Key, call *pendingCall[T], operation Operation[T]) {
	var data T
	var err error

	// Always unregister the call, so a failure never blocks later attempts for the same key
	defer func() {
		if r := recover(); r != nil {
			var empty T
			data = empty
			err = fmt.Errorf("%w: %v", ErrOperationPanicked, r)
		}

		c.mu.Lock()
		if err == nil {
			c.responses.set(key, data)
		}
		c.pending.remove(key)
		joined := call.joined
		c.mu.Unlock()

		if err != nil {
			metrics.operationFailures.Add(ctx, 1)
			logging.FromContext(ctx).WarnContext(ctx, "Request failed", "key", string(key), "joined", joined, "error", err.Error())
		}

		call.settle(data, err)
	}()

	data, err = operation(ctx)
}

// Invalidate removes every cached result whose key contains pattern, and returns how many were removed.
// The empty pattern clears the whole cache.
//
// Operations already in flight are not affected and will store their result when they finish.
func (c *Coordinator[T]) Invalidate(ctx context.Context, pattern string) int {
	removed := c.responses.invalidate(pattern)

	metrics.invalidated.Add(ctx, int64(removed))
	logging.FromContext(ctx).InfoContext(ctx, "Invalidated cache entries", "pattern", pattern, "removed", removed)

	return removed
}

func (c *Coordinator[T]) InvalidateAll(ctx context.Context) int {
	return c.Invalidate(ctx, "")
}

// InFlight reports whether an operation for key is currently running
func (c *Coordinator[T]) InFlight(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.has(key)
}

func (c *Coordinator[T]) InFlightCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.len()
}

func (c *Coordinator[T]) Stop() {
	c.stopOnce.Do(c.responses.stop)
}
