// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowgate/api/controller"
	"github.com/flowgate/api/middleware"
)

func SetupRouter(
	controllers *controller.Controllers,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.AuthMiddleware())
	router.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))

	api := router.Group("/api/v1")

	// Administrative surface: access management, reconciliation, audit trail.
	admin := api.Group("")
	admin.Use(middleware.AdminRequired())
	{
		controllers.Access.RegisterRoutes(admin)
		controllers.Reconciliation.RegisterRoutes(admin)
	}

	// End-user surface: streaming predictions and session history.
	controllers.Chat.RegisterRoutes(api)

	return router
}
