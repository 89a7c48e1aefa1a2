// audit/model.go
package audit

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	Timestamp     time.Time       `json:"timestamp"`
	ActorID       string          `json:"actor_id"`
	Action        string          `json:"action"`
	ChatflowID    string          `json:"chatflow_id,omitempty"`
	TargetUserID  string          `json:"target_user_id,omitempty"`
	ChangeDetails json.RawMessage `json:"change_details,omitempty"`
}

// Administrative actions recorded in the trail. Bulk grants are audited as
// one GRANT_ACCESS entry per email.
const (
	ActionGrantAccess    = "GRANT_ACCESS"
	ActionRevokeAccess   = "REVOKE_ACCESS"
	ActionCleanupRun     = "RECONCILIATION_CLEANUP"
	ActionReassignUserID = "REASSIGN_USER_ID"
)
