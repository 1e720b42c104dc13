package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an Identity.
type Status string

const (
	StatusDraft                       Status = "Draft"
	StatusPendingVerification         Status = "PendingVerification"
	StatusPendingApproval             Status = "PendingApproval"
	StatusApprovedPendingRegistration Status = "ApprovedPendingRegistration"
	StatusActive                      Status = "Active"
	StatusRejected                    Status = "Rejected"
	StatusDisabled                    Status = "Disabled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingVerification, StatusPendingApproval,
		StatusApprovedPendingRegistration, StatusActive, StatusRejected, StatusDisabled:
		return true
	}
	return false
}

// Identity is an externally registered portal account. Identities are never
// deleted; they only move between statuses.
type Identity struct {
	ID             string
	Email          string // normalised, see NormalizeEmail
	CredentialHash string // opaque; empty until a password is set
	Status         Status
	Roles          []string // role codes granted so far
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasRole reports whether code has been granted.
func (i Identity) HasRole(code string) bool {
	for _, r := range i.Roles {
		if r == code {
			return true
		}
	}
	return false
}

// NormalizeEmail trims and lower-cases an address. All lookups and the
// uniqueness index operate on the normalised form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
