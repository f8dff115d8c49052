package common

import (
	"net/http"

	"github.com/joomcode/errorx"
)

var (
	Errors = errorx.NewNamespace("relaycast")

	// Missing headers, malformed bodies, stale timestamps
	ErrValidation = Errors.NewType("validation")
	// Unknown keys and signature mismatches. Always reported with a generic message
	ErrAuthentication = Errors.NewType("authentication")
	// Permission guard failures
	ErrForbidden = Errors.NewType("forbidden")
	ErrNotFound  = Errors.NewType("not_found", errorx.NotFound())
	// Bind, unbind, publish and consume failures
	ErrBroker = Errors.NewType("broker")
)

const authenticationFailedMessage = "Authentication failed"

// ErrorResponse is the uniform error envelope returned for every terminal failure
type ErrorResponse struct {
	Name    string            `json:"name"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Data    map[string]string `json:"data,omitempty"`
}

// StatusFor returns the HTTP status matching the error type
func StatusFor(err error) int {
	switch {
	case errorx.IsOfType(err, ErrValidation):
		return http.StatusBadRequest
	case errorx.IsOfType(err, ErrAuthentication), errorx.IsOfType(err, ErrNotFound):
		return http.StatusUnauthorized
	case errorx.IsOfType(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorResponse builds an error envelope. Authentication failures do not disclose
// which check failed; internal failures do not disclose internal details.
func NewErrorResponse(err error, data map[string]string) *ErrorResponse {
	status := StatusFor(err)

	res := &ErrorResponse{Status: status, Data: data}

	switch status {
	case http.StatusBadRequest:
		res.Name = "ValidationError"
		res.Message = messageOf(err)
	case http.StatusUnauthorized:
		res.Name = "AuthenticationError"
		res.Message = authenticationFailedMessage
	case http.StatusForbidden:
		res.Name = "ForbiddenError"
		res.Message = messageOf(err)
	default:
		res.Name = "InternalError"
		res.Message = "Failed to process request"
	}

	return res
}

func messageOf(err error) string {
	if ex := errorx.Cast(err); ex != nil {
		if msg := ex.Message(); msg != "" {
			return msg
		}
	}

	return err.Error()
}
