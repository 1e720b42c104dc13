package domain

import "slices"

// Actor is the authenticated caller of a privileged workflow. It is passed
// explicitly into each call instead of being read from ambient state.
type Actor struct {
	ID     string
	Scopes []string
}

// Anonymous is the zero Actor used by self-service flows.
var Anonymous = Actor{}

// IsAnonymous reports whether no caller is attached.
func (a Actor) IsAnonymous() bool { return a.ID == "" }

// HasScope reports whether the actor carries scope.
func (a Actor) HasScope(scope string) bool {
	return slices.Contains(a.Scopes, scope)
}

// Scopes checked by the accreditation and administration workflows.
const (
	ScopeAccreditationReview = "accreditation:review"
	ScopeIdentityAdmin       = "identity:admin"
)
