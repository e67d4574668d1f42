package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeAppError maps an error to the status of its code.  Errors without a
// code, and internal errors, are masked.
func writeAppError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	var appErr *errors.AppError
	if code == errors.CodeUnknown || code == errors.ErrCodeInternal || !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Code:    errors.ErrCodeInternal.String(),
			Message: "internal server error",
		})
		return
	}
	writeJSON(w, errors.HTTPStatusForCode(code), ErrorResponse{
		Code:    code.String(),
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}
