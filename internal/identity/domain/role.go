package domain

import "time"

// Role is a portal role an accreditation can grant. Codes are stable
// identifiers such as EXTERNAL_USER.
type Role struct {
	Code      string
	Name      string
	Scopes    []string // parsed from space-delimited storage
	CreatedAt time.Time
}

const (
	RoleExternalUser          = "EXTERNAL_USER"
	RoleProfessional          = "PROFESSIONAL"
	RoleCompanyRepresentative = "COMPANY_REPRESENTATIVE"
)
