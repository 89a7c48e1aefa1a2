// errors/access_errors.go
package errors

import "errors"

var (
	ErrAccessDenied         = errors.New("access denied for chatflow")
	ErrAccessRecordNotFound = errors.New("access record not found")
	ErrInvalidAccessData    = errors.New("invalid access data")
	ErrUserShadowNotFound   = errors.New("user shadow not found")
	ErrInvalidEmail         = errors.New("invalid email address")
)
