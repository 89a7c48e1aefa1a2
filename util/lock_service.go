// util/lock_service.go

package util

import (
	"context"
	"time"

	"github.com/flowgate/api/db"
)

// LockService hands out the per-user billing lock backed by redis SETNX.
type LockService struct{}

func NewLockService() *LockService {
	return &LockService{}
}

func (l *LockService) Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	return db.AcquireUserLock(ctx, userID, ttl)
}

func (l *LockService) Release(ctx context.Context, userID string) error {
	return db.ReleaseUserLock(ctx, userID)
}
