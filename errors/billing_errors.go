// errors/billing_errors.go
package errors

import "errors"

var (
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrDeductionFailed      = errors.New("credit deduction failed")
	ErrReservationConflict  = errors.New("another reservation is in progress for this user")
	ErrChatflowNotFound     = errors.New("chatflow not found")
)
