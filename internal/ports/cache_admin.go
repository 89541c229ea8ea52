package ports

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Amund211/beacon/internal/adapters/cache"
	"github.com/Amund211/beacon/internal/app"
	"github.com/Amund211/beacon/internal/logging"
)

const (
	maxAdminBodyBytes = 1 << 16
	maxWarmRequests   = 100
)

type invalidateRequest struct {
	Pattern string `json:"pattern"`
}

type invalidateResponse struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}

type warmRequest struct {
	Requests []struct {
		Endpoint string         `json:"endpoint"`
		Params   map[string]any `json:"params"`
	} `json:"requests"`
}

type warmResponse struct {
	Success bool   `json:"success"`
	Warmed  int    `json:"warmed"`
	Failed  int    `json:"failed"`
	Cause   string `json:"cause,omitempty"`
}

// decodeOptionalJSON decodes the request body into target. An empty body leaves target untouched.
// Numbers are kept as json.Number so ids render exactly as the client sent them.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBodyBytes))
	decoder.DisallowUnknownFields()
	decoder.UseNumber()

	err := decoder.Decode(target)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func MakeInvalidateHandler(invalidate app.Invalidate, deps HandlerDeps) http.HandlerFunc {
	middleware := deps.adminMiddleware("invalidate")

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var request invalidateRequest
		if err := decodeOptionalJSON(w, r, &request); err != nil {
			writeErrorResponse(ctx, w, "invalid request body", http.StatusBadRequest)
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.String("pattern", request.Pattern))

		removed := invalidate(ctx, request.Pattern)

		writeJSONResponse(ctx, w, invalidateResponse{Success: true, Removed: removed}, http.StatusOK)
	}

	return middleware(handler)
}

func MakeWarmHandler(warmResources app.WarmResources, deps HandlerDeps) http.HandlerFunc {
	middleware := deps.adminMiddleware("warm")

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var request warmRequest
		if err := decodeOptionalJSON(w, r, &request); err != nil {
			writeErrorResponse(ctx, w, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(request.Requests) > maxWarmRequests {
			writeErrorResponse(ctx, w, "too many requests in batch", http.StatusBadRequest)
			return
		}

		requests := make([]app.ResourceRequest, 0, len(request.Requests))
		for _, req := range request.Requests {
			requests = append(requests, app.ResourceRequest{
				Endpoint: req.Endpoint,
				Params:   cache.Params(req.Params),
			})
		}

		ctx = logging.AddMetaToContext(ctx, slog.Int("batchSize", len(requests)))

		warmed, err := warmResources(ctx, requests)
		response := warmResponse{
			Success: err == nil,
			Warmed:  warmed,
			Failed:  len(requests) - warmed,
		}
		if err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "Failed to warm some resources", "error", err.Error())
			response.Cause = "some requests failed"
		}

		writeJSONResponse(ctx, w, response, http.StatusOK)
	}

	return middleware(handler)
}
