// model/finding.go
package model

// IssueType classifies one access record against the identity provider.
// A failed lookup is distinct from "no such user" because the remediation
// differs: retry versus repair.
type IssueType string

const (
	IssueValid             IssueType = "valid"
	IssueUserNotFound      IssueType = "user_not_found"
	IssueExternalAuthError IssueType = "external_auth_error"
)

// AuditFinding is the ephemeral classification of one access record.
// Findings are computed per invocation and never persisted.
type AuditFinding struct {
	Record          AccessRecord `json:"record"`
	Shadow          *UserShadow  `json:"shadow,omitempty"`
	Issue           IssueType    `json:"issue"`
	Detail          string       `json:"detail,omitempty"`
	SuggestedAction string       `json:"suggested_action,omitempty"`
}

// AccessAuditReport aggregates an audit run over the access registry.
type AccessAuditReport struct {
	TotalRecords       int            `json:"total_records"`
	Valid              int            `json:"valid"`
	UserNotFound       int            `json:"user_not_found"`
	ExternalAuthErrors int            `json:"external_auth_errors"`
	DistinctChatflows  int            `json:"distinct_chatflows"`
	Recommendations    []string       `json:"recommendations"`
	Findings           []AuditFinding `json:"findings"`
}

// CleanupAction selects what to do with an invalid access record.
type CleanupAction string

const (
	CleanupDeleteInvalid     CleanupAction = "delete_invalid"
	CleanupDeactivateInvalid CleanupAction = "deactivate_invalid"
	CleanupReassignByEmail   CleanupAction = "reassign_by_email"
)

// ValidCleanupAction reports whether action is one of the supported actions.
func ValidCleanupAction(action CleanupAction) bool {
	switch action {
	case CleanupDeleteInvalid, CleanupDeactivateInvalid, CleanupReassignByEmail:
		return true
	}
	return false
}

// CleanupReport mirrors the audit report plus per-category mutation counters.
// With DryRun set, the counters describe what would have happened and the
// registry is untouched.
type CleanupReport struct {
	AccessAuditReport
	Action      CleanupAction `json:"action"`
	DryRun      bool          `json:"dry_run"`
	Deleted     int           `json:"deleted"`
	Deactivated int           `json:"deactivated"`
	Reassigned  int           `json:"reassigned"`
	Failed      int           `json:"failed"`
	Errors      []string      `json:"errors,omitempty"`
}
