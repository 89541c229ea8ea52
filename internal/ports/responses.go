package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Amund211/beacon/internal/reporting"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause"`
}

func writeJSONResponse(ctx context.Context, w http.ResponseWriter, body any, statusCode int) {
	data, err := json.Marshal(body)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal response: %w", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func writeErrorResponse(ctx context.Context, w http.ResponseWriter, cause string, statusCode int) {
	writeJSONResponse(ctx, w, errorResponse{Success: false, Cause: cause}, statusCode)
}
