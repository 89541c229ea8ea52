// beacon-fetch fires the same request many times at once through a Coordinator and
// reports how many of them actually reached the upstream.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Amund211/beacon/internal/adapters/cache"
	"github.com/Amund211/beacon/internal/adapters/upstream"
	"github.com/Amund211/beacon/internal/app"
	"github.com/Amund211/beacon/internal/domain"
	"github.com/Amund211/beacon/internal/logging"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

type countingHttpClient struct {
	client upstream.HttpClient
	calls  atomic.Int64
}

func (c *countingHttpClient) Do(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return c.client.Do(req)
}

type fetchOptions struct {
	baseURL        string
	apiKey         string
	endpoint       string
	params         cache.Params
	count          int
	rounds         int
	roundsInterval time.Duration
	ttl            time.Duration
	requestsPerSec float64
}

type fetchResult struct {
	requests      int
	failures      int
	upstreamCalls int64
}

func parseParams(raw []string) (cache.Params, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	params := make(cache.Params, len(raw))
	for _, entry := range raw {
		name, value, found := strings.Cut(entry, "=")
		if name == "" {
			return nil, fmt.Errorf("invalid param %q: expected name=value", entry)
		}
		if !found {
			params[name] = nil
			continue
		}
		params[name] = value
	}
	return params, nil
}

func fetch(ctx context.Context, opts fetchOptions, httpClient upstream.HttpClient, out io.Writer) (fetchResult, error) {
	counter := &countingHttpClient{client: httpClient}

	api, err := upstream.NewAPI(counter, opts.baseURL, opts.apiKey, rate.NewLimiter(rate.Limit(opts.requestsPerSec), 1), time.Now)
	if err != nil {
		return fetchResult{}, fmt.Errorf("failed to create upstream api: %w", err)
	}

	coordinator := cache.NewCoordinator[domain.Response](opts.ttl)
	defer coordinator.Stop()

	getResource := app.BuildGetResourceWithCache(coordinator, api)

	var failures atomic.Int64
	var outMu sync.Mutex
	for round := range opts.rounds {
		if round > 0 {
			select {
			case <-ctx.Done():
				return fetchResult{}, ctx.Err()
			case <-time.After(opts.roundsInterval):
			}
		}

		wg := sync.WaitGroup{}
		for range opts.count {
			wg.Go(func() {
				if _, err := getResource(ctx, opts.endpoint, opts.params); err != nil {
					failures.Add(1)
					outMu.Lock()
					fmt.Fprintf(out, "round %d: error: %s\n", round+1, err)
					outMu.Unlock()
				}
			})
		}
		wg.Wait()

		fmt.Fprintf(out, "round %d: %d requests, %d upstream calls so far\n", round+1, opts.count, counter.calls.Load())
	}

	result := fetchResult{
		requests:      opts.count * opts.rounds,
		failures:      int(failures.Load()),
		upstreamCalls: counter.calls.Load(),
	}
	fmt.Fprintf(out, "%d requests, %d failed, %d upstream calls\n", result.requests, result.failures, result.upstreamCalls)

	return result, nil
}

func newCommand(httpClient upstream.HttpClient, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "beacon-fetch",
		Usage: "Fetch an endpoint concurrently through the request coordinator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "base-url",
				Usage:    "upstream base url",
				Sources:  cli.EnvVars("UPSTREAM_BASE_URL"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "upstream api key",
				Sources: cli.EnvVars("UPSTREAM_API_KEY"),
			},
			&cli.StringFlag{
				Name:     "endpoint",
				Aliases:  []string{"e"},
				Usage:    "endpoint to fetch, e.g. /books",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "param",
				Aliases: []string{"p"},
				Usage:   "query parameter as name=value, repeatable",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "concurrent requests per round",
				Value:   10,
			},
			&cli.IntFlag{
				Name:  "rounds",
				Usage: "number of rounds",
				Value: 1,
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "pause between rounds",
				Value: time.Second,
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "how long responses stay fresh, 0 disables caching",
				Value: cache.DefaultTTL,
			},
			&cli.FloatFlag{
				Name:  "rps",
				Usage: "upstream requests per second",
				Value: 10,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			params, err := parseParams(cmd.StringSlice("param"))
			if err != nil {
				return err
			}
			if cmd.Int("count") < 1 || cmd.Int("rounds") < 1 {
				return fmt.Errorf("count and rounds must be positive")
			}
			if cmd.Float("rps") <= 0 {
				return fmt.Errorf("rps must be positive")
			}

			_, err = fetch(ctx, fetchOptions{
				baseURL:        cmd.String("base-url"),
				apiKey:         cmd.String("api-key"),
				endpoint:       cmd.String("endpoint"),
				params:         params,
				count:          cmd.Int("count"),
				rounds:         cmd.Int("rounds"),
				roundsInterval: cmd.Duration("interval"),
				ttl:            cmd.Duration("ttl"),
				requestsPerSec: cmd.Float("rps"),
			}, httpClient, out)
			return err
		},
	}
}

func main() {
	// Only warnings and up, the summary goes to stdout
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := logging.AddToContext(context.Background(), logger)

	httpClient := &http.Client{Timeout: 10 * time.Second}

	if err := newCommand(httpClient, os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
