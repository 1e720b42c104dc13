package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/portalid/internal/identity/domain"
)

// ErrValidation is the parent of every input rejection; test with errors.Is.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidEmail    = fmt.Errorf("%w: invalid email address", ErrValidation)
	ErrWeakPassword    = fmt.Errorf("%w: password does not meet policy", ErrValidation)
	ErrUnknownRole     = fmt.Errorf("%w: unknown role", ErrValidation)
	ErrNoteRequired    = fmt.Errorf("%w: rejection requires a note", ErrValidation)
	ErrInvalidDecision = fmt.Errorf("%w: decision must be Approve or Reject", ErrValidation)

	ErrDuplicateEmail = errors.New("email already registered")
	ErrNotFound       = errors.New("not found")
	ErrAlreadyDecided = errors.New("accreditation request already decided")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrResetFailed    = errors.New("password reset failed")
	ErrIllegalState   = errors.New("illegal state transition")
	ErrForbidden      = errors.New("actor lacks required scope")
)

// TokenFailure classifies why a token could not be consumed. It is logged,
// never shown to the caller.
type TokenFailure string

const (
	TokenNotFound    TokenFailure = "not_found"
	TokenAlreadyUsed TokenFailure = "already_used"
	TokenExpired     TokenFailure = "expired"
)

// TokenError is returned by TokenVault.Consume.
type TokenError struct {
	Kind    TokenFailure
	Purpose domain.Purpose
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token %s: %s", e.Purpose, e.Kind)
}

// Is lets callers treat every TokenError as ErrInvalidToken.
func (e *TokenError) Is(target error) bool { return target == ErrInvalidToken }

// IllegalStateError reports a lifecycle event that the identity's current
// status does not allow.
type IllegalStateError struct {
	ID    string
	From  domain.Status
	Event string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("identity %s: %s not allowed from %s", e.ID, e.Event, e.From)
}

func (e *IllegalStateError) Is(target error) bool { return target == ErrIllegalState }

// PolicyError lists the password policy rules a candidate failed.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return "password does not meet policy: " + strings.Join(e.Violations, "; ")
}

func (e *PolicyError) Is(target error) bool {
	return target == ErrWeakPassword || target == ErrValidation
}
