package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/harwood-dev/deskgate/pkg/httpx"
)

// API error codes returned in the "error" field.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeAccountLocked      = "account_locked"
	ErrorCodeTOTPRequired       = "totp_required"
	ErrorCodeTOTPSetupMissing   = "totp_setup_missing"
	ErrorCodeIPForbidden        = "ip_forbidden"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeConflict           = "conflict"
	ErrorCodeServerError        = "server_error"
)

// APIError is the JSON error envelope every handler returns on failure.
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine-readable error code
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

var (
	ErrBadRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidCredentials deliberately covers unknown user, wrong password
	// and wrong TOTP code with one message.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid username or password",
	}

	ErrAccountLocked = &APIError{
		StatusCode:  http.StatusLocked,
		Code:        ErrorCodeAccountLocked,
		Description: "account temporarily locked due to repeated failures",
	}

	// ErrTOTPRequired tells the client to resubmit the same credentials with
	// a TOTP code. It is flow control, not a rejection.
	ErrTOTPRequired = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeTOTPRequired,
		Description: "a totp code is required to complete this login",
	}

	ErrTOTPSetupMissing = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeTOTPSetupMissing,
		Description: "two-factor enrollment has not been completed",
	}

	ErrIPForbidden = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeIPForbidden,
		Description: "login is not permitted from this address",
	}

	ErrForbidden = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeForbidden,
		Description: "insufficient permissions for this operation",
	}

	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "the requested resource does not exist",
	}

	ErrConflict = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeConflict,
		Description: "the resource already exists or is in a conflicting state",
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "an internal error occurred",
	}
)
