package identitysdk

import "time"

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// AcceptedResponse is returned by self-service endpoints whose outcome is
// deliberately not disclosed.
type AcceptedResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StatusResponse acknowledges a completed action.
type StatusResponse struct {
	Status string `json:"status"`
}

// ============================================================================
// Self-service
// ============================================================================

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

// TokenPasswordRequest redeems a token while setting a password. Used for
// registration completion and password reset.
type TokenPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ============================================================================
// Accreditation
// ============================================================================

const (
	DecisionApprove = "Approve"
	DecisionReject  = "Reject"
)

type ApplyRequest struct {
	Email    string `json:"email"`
	RoleCode string `json:"role_code"`
}

type SubmitAccreditationRequest struct {
	RoleCode string `json:"role_code"`
}

type DecisionRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note,omitempty"`
}

// AccreditationRequest is a role request and, once decided, its outcome.
type AccreditationRequest struct {
	ID                  string     `json:"id"`
	RequesterIdentityID string     `json:"requester_identity_id"`
	RoleCode            string     `json:"role_code"`
	Status              string     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	DecidedAt           *time.Time `json:"decided_at,omitempty"`
	ApproverID          string     `json:"approver_id,omitempty"`
	RejectionNote       string     `json:"rejection_note,omitempty"`
}

type PendingAccreditationsResponse struct {
	Requests []AccreditationRequest `json:"requests"`
}

// ============================================================================
// Identities
// ============================================================================

type IdentityResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse is returned by /livez and /readyz; only readyz fills Checks.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Redis    string `json:"redis,omitempty"`
}
