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

	"github.com/sentra-labs/sentra/audit"
	"github.com/sentra-labs/sentra/config"
	"github.com/sentra-labs/sentra/controller"
	"github.com/sentra-labs/sentra/db"
	logger "github.com/sentra-labs/sentra/logging"
	"github.com/sentra-labs/sentra/pdp/engine"
	"github.com/sentra-labs/sentra/pdp/safety"
	"github.com/sentra-labs/sentra/router"
	"github.com/sentra-labs/sentra/service"
	"github.com/sentra-labs/sentra/util"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	// Initialize EventBus
	eventBus := util.NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eventBus.Start(ctx)

	// Initialize services and utilities
	notificationService := util.NewNotificationService()
	auditRepository, err := audit.NewElasticsearchRepository(config.GetString("elasticsearch.url"))
	if err != nil {
		logger.Fatal("Failed to initialize audit repository", zap.Error(err))
	}
	auditService := audit.NewService(auditRepository)

	// The audit trail consumes decision events asynchronously.
	auditHandler := func(ctx context.Context, event util.Event) error {
		record, ok := event.Payload.(audit.DecisionRecord)
		if !ok {
			return nil
		}
		return auditService.LogDecision(ctx, record)
	}
	eventBus.Subscribe(service.EventDecisionEvaluated, auditHandler)
	eventBus.Subscribe(service.EventDecisionResolved, auditHandler)

	// Initialize the decision engine
	var cacheBackend engine.CacheBackend
	if config.GetBool("engine.useRedisCache") {
		cacheBackend = db.NewDecisionCacheBackend(db.RedisClient)
	}
	evaluator := engine.NewEvaluator(engine.Options{
		CacheBackend: cacheBackend,
		CacheTTL:     config.GetDuration("engine.decisionCacheTTL"),
		Safety:       safety.NewHeuristicPipeline(),
		EnableScorer: config.GetBool("engine.enableScorer"),
	})

	// Initialize services and controllers
	decisionService := service.NewDecisionService(evaluator, eventBus, notificationService)
	decisionController := controller.NewDecisionController(decisionService)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engineRouter := router.SetupRouter(decisionController, 100, time.Minute) // 100 requests per minute

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
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
