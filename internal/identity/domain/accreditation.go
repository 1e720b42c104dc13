package domain

import "time"

// RequestStatus is the state of an AccreditationRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestApproved RequestStatus = "Approved"
	RequestRejected RequestStatus = "Rejected"
)

// Decision is a reviewer's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "Approve"
	DecisionReject  Decision = "Reject"
)

// Valid reports whether d is Approve or Reject.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// AccreditationRequest asks a reviewer to grant RequestedRoleCode to the
// requester. DecidedAt and ApproverID are set iff Status != Pending;
// RejectionNote is set iff Status == Rejected.
type AccreditationRequest struct {
	ID                  string
	RequesterIdentityID string
	RequestedRoleCode   string
	Status              RequestStatus
	CreatedAt           time.Time
	DecidedAt           *time.Time
	ApproverID          *string
	RejectionNote       *string
}
