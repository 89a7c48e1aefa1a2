// errors/reconciliation_errors.go
package errors

import "errors"

var (
	ErrReconciliationLookup = errors.New("identity provider lookup failed")
	ErrInvalidCleanupAction = errors.New("invalid cleanup action")
)
