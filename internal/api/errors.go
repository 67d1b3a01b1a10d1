package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// respondServiceError translates the service error taxonomy into an HTTP
// response. User-facing errors keep their code and message; everything else
// collapses to an opaque 500.
func respondServiceError(w http.ResponseWriter, err error) {
	categorized := apperrors.Categorize(err)
	status := apperrors.GetHTTPStatusCode(categorized)

	if apperrors.IsUserError(categorized) || status != http.StatusInternalServerError {
		svcErr := categorized.ToServiceError()
		respondError(w, status, svcErr.Code, svcErr.Message, svcErr.Details)
		return
	}

	respondError(w, http.StatusInternalServerError, apperrors.CodeInternal, "An internal error occurred", nil)
}
