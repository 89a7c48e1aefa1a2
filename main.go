package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flowgate/api/audit"
	"github.com/flowgate/api/config"
	"github.com/flowgate/api/controller"
	"github.com/flowgate/api/dao"
	"github.com/flowgate/api/db"
	"github.com/flowgate/api/engine"
	"github.com/flowgate/api/identity"
	"github.com/flowgate/api/ledger"
	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/router"
	"github.com/flowgate/api/service"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Neo4j
	if err := db.InitNeo4j(); err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}
	defer db.CloseNeo4j()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	// Audit trail
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize Elasticsearch audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)

	// External collaborators
	identityProvider := identity.NewHTTPClient(
		config.GetString("identity.baseURL"), config.GetDuration("identity.timeout"))
	ledgerClient := ledger.NewHTTPClient(
		config.GetString("ledger.baseURL"), config.GetDuration("ledger.timeout"))
	engineClient := engine.NewHTTPClient(
		config.GetString("engine.baseURL"), config.GetDuration("engine.timeout"))

	// Initialize DAOs
	accessDAO := dao.NewAccessDAO(db.Neo4jDriver, auditService)
	shadowDAO := dao.NewUserShadowDAO(db.Neo4jDriver)
	chatDAO := dao.NewChatDAO(db.Neo4jDriver)

	// Initialize services
	services := service.NewServices(accessDAO, shadowDAO, chatDAO,
		identityProvider, ledgerClient, engineClient, auditService)

	// Initialize controllers
	controllers := controller.InitializeControllers(services)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engineRouter := router.SetupRouter(controllers,
		config.GetInt("ratelimit.requests"),
		config.GetDuration("ratelimit.window"))

	// Set up the server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engineRouter,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
