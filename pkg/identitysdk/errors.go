package identitysdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
)

// Error codes returned by the service.
const (
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeInvalidEmail      = "invalid_email"
	ErrorCodeWeakPassword      = "weak_password"
	ErrorCodeInvalidToken      = "invalid_or_expired_token"
	ErrorCodeResetFailed       = "reset_failed"
	ErrorCodeUnknownRole       = "unknown_role"
	ErrorCodeNoteRequired      = "note_required"
	ErrorCodeInvalidDecision   = "invalid_decision"
	ErrorCodeNotFound          = "not_found"
	ErrorCodeAlreadyDecided    = "already_decided"
	ErrorCodeConflict          = "conflict"
	ErrorCodeForbidden         = "forbidden"
	ErrorCodeRateLimited       = "rate_limit_exceeded"
	ErrorCodeServerError       = "server_error"
	ErrorCodeUnauthorized      = "invalid_token"
	ErrorCodeInsufficientScope = "insufficient_scope"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// parseErrorResponse turns an error body into *APIError. Returns nil for
// 2xx responses.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	// Bearer failures carry their code in the challenge header instead.
	if m := bearerErrorRe.FindStringSubmatch(resp.Header.Get("WWW-Authenticate")); m != nil {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        m[1],
			Description: http.StatusText(resp.StatusCode),
		}
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: http.StatusText(resp.StatusCode),
	}
}

var bearerErrorRe = regexp.MustCompile(`error="([^"]+)"`)
