package domain

import "time"

// Purpose binds a token to the one workflow that may consume it.
type Purpose string

const (
	PurposeEmailVerification      Purpose = "EmailVerification"
	PurposePasswordReset          Purpose = "PasswordReset"
	PurposeRegistrationCompletion Purpose = "RegistrationCompletion"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeEmailVerification, PurposePasswordReset, PurposeRegistrationCompletion:
		return true
	}
	return false
}

// Token is the persisted record of a single-use token. The raw value is only
// known at issuance; the store keeps its fingerprint.
type Token struct {
	ID                string
	TokenHash         string
	Purpose           Purpose
	SubjectIdentityID string
	IssuedAt          time.Time
	ExpiresAt         time.Time
	UsedAt            *time.Time
}

// IsExpired reports whether the token is past its expiry at now.
func (t Token) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IssuedToken pairs the stored record with the raw value handed to the
// caller exactly once.
type IssuedToken struct {
	Token
	Value string
}
