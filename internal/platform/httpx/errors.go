package httpx

import (
	"context"
	"errors"
	"net/http"
)

// ErrValidation marks request input that failed validation.
var ErrValidation = errors.New("validation failed")

// RespondError maps errors to HTTP responses using RFC7807.
// Only validation errors expose their message to the client.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		Problem(w, http.StatusGatewayTimeout, "Timeout", "report took too long to build")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
