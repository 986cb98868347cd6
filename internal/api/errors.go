package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/qr-hub/internal/errors"
	"github.com/qr-hub/internal/logging"
)

const msgInternalError = "An internal error occurred"

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse is the error envelope returned by every endpoint
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse acknowledges a mutation with no other payload
type SuccessResponse struct {
	Success bool `json:"success"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses a JSON request body. An empty body is an error.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return decoder.Decode(v)
}

// mapServiceError maps service errors to a status code and a message safe to show the caller.
func mapServiceError(err error) (int, string) {
	if catErr, ok := apperrors.As(err); ok {
		if catErr.IsClientSafe() {
			return catErr.StatusCode, catErr.Message
		}
		return catErr.StatusCode, msgInternalError
	}
	return http.StatusInternalServerError, msgInternalError
}

// respondServiceError logs server-side failures and writes the mapped envelope
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := mapServiceError(err)
	if status >= http.StatusInternalServerError {
		logger := logging.FromContext(r.Context()).WithError(err)
		var catErr *apperrors.CategorizedError
		if errors.As(err, &catErr) {
			logger = logger.WithFields(map[string]interface{}{
				"code":     catErr.Code,
				"category": catErr.Category,
			})
		}
		logger.Error("Request failed")
	}
	respondError(w, status, message)
}
