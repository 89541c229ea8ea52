package ports

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Amund211/beacon/internal/adapters/cache"
	"github.com/Amund211/beacon/internal/app"
	"github.com/Amund211/beacon/internal/domain"
	"github.com/Amund211/beacon/internal/logging"
	"github.com/Amund211/beacon/internal/reporting"
)

const maxMutationBodyBytes = 1 << 20

// paramsFromQuery joins repeated parameters with ",", so ?tag=a&tag=b reads as tag=a,b
func paramsFromQuery(query url.Values) cache.Params {
	if len(query) == 0 {
		return nil
	}

	params := make(cache.Params, len(query))
	for name, values := range query {
		params[name] = strings.Join(values, ",")
	}
	return params
}

func endpointFromRequest(r *http.Request) string {
	return "/" + r.PathValue("path")
}

func writeUpstreamResponse(w http.ResponseWriter, response domain.Response) {
	w.Header().Set("Content-Type", response.ContentType)
	w.WriteHeader(response.StatusCode)
	w.Write(response.Data)
}

func handleResourceError(ctx context.Context, w http.ResponseWriter, err error) {
	var statusErr *domain.StatusError
	switch {
	case errors.As(err, &statusErr):
		contentType := statusErr.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(statusErr.StatusCode)
		w.Write(statusErr.Data)
	case errors.Is(err, app.ErrInvalidEndpoint):
		writeErrorResponse(ctx, w, "invalid endpoint", http.StatusBadRequest)
	case errors.Is(err, app.ErrMethodNotAllowed):
		writeErrorResponse(ctx, w, "method not allowed", http.StatusMethodNotAllowed)
	case errors.Is(err, domain.ErrNotFound):
		writeErrorResponse(ctx, w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrTemporarilyUnavailable):
		writeErrorResponse(ctx, w, "temporarily unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// The client went away, nobody will read this
		writeErrorResponse(ctx, w, "request cancelled", http.StatusRequestTimeout)
	case errors.Is(err, cache.ErrOperationPanicked):
		reporting.Report(ctx, err)
		writeErrorResponse(ctx, w, "internal server error", http.StatusInternalServerError)
	default:
		// NOTE: API implementations handle their own error reporting
		writeErrorResponse(ctx, w, "upstream error", http.StatusBadGateway)
	}
}

func MakeGetResourceHandler(getResource app.GetResource, deps HandlerDeps) http.HandlerFunc {
	middleware := deps.middleware("get_resource")

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		endpoint := endpointFromRequest(r)
		params := paramsFromQuery(r.URL.Query())

		ctx = logging.AddMetaToContext(ctx, slog.String("endpoint", endpoint))
		ctx = reporting.AddExtrasToContext(ctx,
			map[string]string{
				"endpoint": endpoint,
				"query":    r.URL.RawQuery,
			},
		)

		response, err := getResource(ctx, endpoint, params)
		if err != nil {
			handleResourceError(ctx, w, err)
			return
		}

		writeUpstreamResponse(w, response)
	}

	return middleware(handler)
}

func MakeMutateResourceHandler(mutateResource app.MutateResource, deps HandlerDeps) http.HandlerFunc {
	middleware := deps.middleware("mutate_resource")

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		endpoint := endpointFromRequest(r)

		ctx = logging.AddMetaToContext(ctx,
			slog.String("endpoint", endpoint),
			slog.String("method", r.Method),
		)
		ctx = reporting.AddExtrasToContext(ctx,
			map[string]string{
				"endpoint": endpoint,
			},
		)

		if r.URL.RawQuery != "" {
			writeErrorResponse(ctx, w, "query parameters are not supported on mutations", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMutationBodyBytes))
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeErrorResponse(ctx, w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			writeErrorResponse(ctx, w, "failed to read request body", http.StatusBadRequest)
			return
		}

		response, err := mutateResource(ctx, r.Method, endpoint, body, r.Header.Get("Content-Type"))
		if err != nil {
			handleResourceError(ctx, w, err)
			return
		}

		writeUpstreamResponse(w, response)
	}

	return middleware(handler)
}
