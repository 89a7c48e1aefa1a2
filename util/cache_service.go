// util/cache_service.go

package util

import (
	"context"

	"github.com/flowgate/api/db"
	"github.com/flowgate/api/model"
)

type CacheService struct{}

func NewCacheService() *CacheService {
	return &CacheService{}
}

func (c *CacheService) SetUserShadow(ctx context.Context, shadow model.UserShadow) error {
	return db.CacheUserShadow(ctx, &shadow)
}

func (c *CacheService) GetUserShadowByEmail(ctx context.Context, email string) (*model.UserShadow, error) {
	return db.GetCachedUserShadowByEmail(ctx, email)
}

func (c *CacheService) DeleteUserShadow(ctx context.Context, shadow model.UserShadow) error {
	return db.DeleteCachedUserShadow(ctx, &shadow)
}

func (c *CacheService) SetChatflowCost(ctx context.Context, chatflowID string, cost float64) error {
	return db.CacheChatflowCost(ctx, chatflowID, cost)
}

func (c *CacheService) GetChatflowCost(ctx context.Context, chatflowID string) (float64, bool, error) {
	return db.GetCachedChatflowCost(ctx, chatflowID)
}
