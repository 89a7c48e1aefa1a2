// model/access.go
package model

import "time"

// GrantOutcome is the result of an access upsert. The grant path is a
// three-way idempotent upsert: the identity provider may recreate the same
// logical user under a new id over time, so a repeated grant is never an error.
type GrantOutcome string

const (
	OutcomeGranted        GrantOutcome = "granted"
	OutcomeAlreadyGranted GrantOutcome = "already_granted"
	OutcomeReactivated    GrantOutcome = "reactivated"
)

// AccessRecord is the local grant of a user's right to use a chatflow.
// UserID is the identity provider's id and is never referentially enforced
// by the store; reconciliation owns its integrity.
type AccessRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ChatflowID string    `json:"chatflow_id"`
	IsActive   bool      `json:"is_active"`
	AssignedAt time.Time `json:"assigned_at"`
}

// AccessEntry is an AccessRecord joined with the cached shadow profile,
// as returned to administrators listing a chatflow's users.
type AccessEntry struct {
	Record AccessRecord `json:"record"`
	Shadow *UserShadow  `json:"user,omitempty"`
}

// GrantResult reports a single grant operation.
type GrantResult struct {
	Outcome    GrantOutcome `json:"outcome"`
	RecordID   string       `json:"record_id"`
	UserID     string       `json:"user_id"`
	ChatflowID string       `json:"chatflow_id"`
}

// BulkGrantStatus classifies one email's outcome within a bulk grant.
type BulkGrantStatus string

const (
	BulkGranted        BulkGrantStatus = "granted"
	BulkAlreadyGranted BulkGrantStatus = "already_granted"
	BulkReactivated    BulkGrantStatus = "reactivated"
	BulkFailed         BulkGrantStatus = "failed"
)

// BulkGrantResult is the per-email outcome of a bulk grant. One bad email
// never aborts the batch; the caller always gets a full result list.
type BulkGrantResult struct {
	Email  string          `json:"email"`
	Status BulkGrantStatus `json:"status"`
	Detail string          `json:"detail,omitempty"`
}
