// Package main runs the TrainHub payment API server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trainhub/backend/config"
	"github.com/trainhub/backend/internal/auth"
	"github.com/trainhub/backend/internal/middleware"
	"github.com/trainhub/backend/internal/payments"
	"github.com/trainhub/backend/internal/processors"
	"github.com/trainhub/backend/internal/processors/paymob"
	"github.com/trainhub/backend/internal/processors/paypal"
	"github.com/trainhub/backend/internal/subscriptions"
	"github.com/trainhub/backend/internal/webhooks"
	"github.com/trainhub/backend/pkg/database"
	"github.com/trainhub/backend/pkg/queue"
	"github.com/trainhub/backend/pkg/redis"
	"github.com/trainhub/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Processor adapters
	paymobAdapter := paymob.NewAdapter(cfg.Paymob, logger)
	paypalAdapter := paypal.NewAdapter(cfg.PayPal, logger)
	registry := processors.NewRegistry(paymobAdapter, paypalAdapter)

	// Subscriptions
	subscriptionRepo := subscriptions.NewRepository(pool)
	subscriptionHandler := subscriptions.NewHandler(subscriptionRepo, cfg.Payments.PlatformFeePct, logger)

	// Payments (orchestrator)
	paymentRepo := payments.NewRepository(pool)
	paymentService := payments.NewService(paymentRepo, subscriptionRepo, registry, jobQueue,
		cfg.Payments.ReturnURL, cfg.Payments.CancelURL, logger)
	paymentHandler := payments.NewHandler(paymentService, logger)

	// Webhooks (signature verification is mandatory for both processors)
	paymobVerifier := paymob.NewVerifier(cfg.Paymob.HMACSecret)
	reconciler := webhooks.NewReconciler(paymentService, paymobVerifier, paypalAdapter, logger)
	webhookHandler := webhooks.NewHandler(reconciler, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/subscriptions", subscriptionHandler.Create)
		api.GET("/subscriptions", subscriptionHandler.List)
		api.POST("/subscriptions/:id/cancel", subscriptionHandler.Cancel)

		api.POST("/payments", paymentHandler.Initiate)
		api.GET("/payments", paymentHandler.List)
		api.GET("/payments/:id", paymentHandler.GetByID)
		api.POST("/payments/:id/capture", paymentHandler.Capture)
		api.POST("/payments/:id/refund", middleware.RequireRole("admin"), paymentHandler.Refund)
	}

	// Webhooks (no JWT; authenticity established by signature verification)
	router.POST("/webhooks/paymob", webhookHandler.Paymob)
	router.POST("/webhooks/paypal", webhookHandler.PayPal)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
