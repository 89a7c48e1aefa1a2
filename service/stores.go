// service/stores.go
package service

import (
	"context"
	"time"

	"github.com/flowgate/api/model"
)

// The services depend on these narrow store interfaces rather than on the DAO
// types directly, so each one can be exercised in tests without a live graph
// database or redis behind it. The dao package satisfies all of them.

type AccessStore interface {
	Grant(ctx context.Context, userID, chatflowID string) (*model.GrantResult, error)
	Revoke(ctx context.Context, userID, chatflowID string) error
	HasActiveAccess(ctx context.Context, userID, chatflowID string) (bool, error)
	ListForChatflow(ctx context.Context, chatflowID string) ([]model.AccessEntry, error)
	ListRecords(ctx context.Context, chatflowIDs []string) ([]model.AccessRecord, error)
	Deactivate(ctx context.Context, recordID string) error
	Delete(ctx context.Context, recordID string) error
	ReassignUserID(ctx context.Context, recordID, newUserID string) error
}

type ShadowStore interface {
	Upsert(ctx context.Context, shadow model.UserShadow) (*model.UserShadow, error)
	FindByEmail(ctx context.Context, email string) (*model.UserShadow, error)
	FindByID(ctx context.Context, id string) (*model.UserShadow, error)
}

type ChatStore interface {
	CommitTurn(ctx context.Context, turn model.ChatSession, question, answerContent string) error
	GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error)
	ListSessionsForUser(ctx context.Context, userID string) ([]model.ChatSession, error)
	GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

// ShadowCache is the write-through redis cache for shadow profiles. Cache
// failures are logged and swallowed, never surfaced to callers.
type ShadowCache interface {
	SetUserShadow(ctx context.Context, shadow model.UserShadow) error
	GetUserShadowByEmail(ctx context.Context, email string) (*model.UserShadow, error)
	DeleteUserShadow(ctx context.Context, shadow model.UserShadow) error
}

// CostCache caches per-chatflow turn costs.
type CostCache interface {
	SetChatflowCost(ctx context.Context, chatflowID string, cost float64) error
	GetChatflowCost(ctx context.Context, chatflowID string) (float64, bool, error)
}

// UserLocker serializes credit reservations per user.
type UserLocker interface {
	Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, userID string) error
}
