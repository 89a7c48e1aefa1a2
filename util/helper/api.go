package helper_util

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetPaginationParams(c *gin.Context) (limit int, offset int, err error) {
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		return 0, 0, err
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		return 0, 0, err
	}
	if limit < 0 || offset < 0 {
		return 0, 0, errors.New("limit and offset must be non-negative")
	}
	return limit, offset, nil
}

// ActorFromContext returns the requesting user's id as placed in the context
// by the auth middleware, or "system" for internal callers.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value("requestingUserID").(string); ok && actor != "" {
		return actor
	}
	return "system"
}
