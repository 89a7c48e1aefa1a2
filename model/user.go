// model/user.go
package model

import "time"

// UserShadow is a locally cached copy of an identity provider profile.
// It is not authoritative: its id may be stale, and its only load-bearing
// role is the email fallback key during reconciliation.
type UserShadow struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// IdentityProfile is a profile as returned by the external identity provider.
type IdentityProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ResolutionKind tags how (or whether) an access record's user was re-resolved
// against the identity provider.
type ResolutionKind string

const (
	ResolvedByID     ResolutionKind = "resolved_by_id"
	ResolvedByEmail  ResolutionKind = "resolved_by_email"
	ResolutionFailed ResolutionKind = "resolution_failed"
)

// Resolution is the tagged outcome of resolving a record's user, first by the
// stored external id and then by the shadow's email. Profile is set for the
// two resolved kinds; Detail carries the failure reason otherwise.
type Resolution struct {
	Kind    ResolutionKind   `json:"kind"`
	Profile *IdentityProfile `json:"profile,omitempty"`
	Detail  string           `json:"detail,omitempty"`
}
