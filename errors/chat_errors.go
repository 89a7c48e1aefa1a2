// errors/chat_errors.go
package errors

import "errors"

var (
	ErrSessionNotFound   = errors.New("chat session not found")
	ErrSessionForbidden  = errors.New("chat session does not belong to caller")
	ErrInvalidChatData   = errors.New("invalid chat data")
	ErrUpstreamFailure   = errors.New("execution engine stream failed")
	ErrEmptyStream       = errors.New("execution engine produced no output")
)
