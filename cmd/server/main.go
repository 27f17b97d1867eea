// Package main runs the event platform HTTP server with WebSocket and graceful shutdown.
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

	"github.com/quickevent/backend/config"
	"github.com/quickevent/backend/internal/auth"
	"github.com/quickevent/backend/internal/checkin"
	"github.com/quickevent/backend/internal/credential"
	"github.com/quickevent/backend/internal/events"
	"github.com/quickevent/backend/internal/middleware"
	"github.com/quickevent/backend/internal/notifications"
	"github.com/quickevent/backend/internal/realtime"
	"github.com/quickevent/backend/internal/registrations"
	"github.com/quickevent/backend/internal/stats"
	"github.com/quickevent/backend/pkg/database"
	"github.com/quickevent/backend/pkg/queue"
	"github.com/quickevent/backend/pkg/redis"
	"github.com/quickevent/backend/pkg/response"
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
	credentialService := credential.NewService(cfg.Credential.Secret)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub)
	defer hub.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, hub, logger)

	// Notifications
	notifRepo := notifications.NewRepository(pool)
	notifHandler := notifications.NewHandler(notifRepo, hub, logger)

	// Registrations
	registrationRepo := registrations.NewRepository(pool)
	registrationHandler := registrations.NewHandler(registrationRepo, eventRepo, notifRepo, credentialService, hub, jobQueue, logger)

	// Check-in
	checkInRepo := checkin.NewRepository(pool)
	coordinator := checkin.NewCoordinator(credentialService, registrationRepo, eventRepo, checkInRepo, hub, logger)
	checkInHandler := checkin.NewHandler(coordinator, checkInRepo, eventRepo, jobQueue, logger)

	// Statistics
	statsRepo := stats.NewRepository(pool)
	statsHandler := stats.NewHandler(statsRepo, eventRepo)

	// Realtime admin surface
	wsHandler := realtime.NewHandler(hub, logger)

	jwtValidate := func(token string) (string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", err
		}
		return claims.UserID.String(), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Events
		api.GET("/events", eventHandler.List)
		api.POST("/events", middleware.RequireRole("admin", "organizer"), eventHandler.Create)
		api.GET("/events/:id", eventHandler.GetByID)
		api.PATCH("/events/:id", middleware.RequireRole("admin", "organizer"), eventHandler.Update)
		api.DELETE("/events/:id", middleware.RequireRole("admin", "organizer"), eventHandler.Delete)
		api.GET("/events/:id/stats", middleware.RequireRole("admin", "organizer"), statsHandler.GetByEvent)

		// Registrations
		api.POST("/events/:id/register", registrationHandler.Create)
		api.GET("/events/:id/registrations", middleware.RequireRole("admin", "organizer"), registrationHandler.ListByEvent)
		api.GET("/registrations/my", registrationHandler.ListMine)
		api.GET("/registrations/:id", registrationHandler.GetByID)
		api.GET("/registrations/:id/qrcode", registrationHandler.QRCode)
		api.POST("/registrations/:id/cancel", registrationHandler.Cancel)

		// Check-in (organizer scans a guest's QR credential)
		api.POST("/organizer/checkin", middleware.RequireRole("admin", "organizer"), checkInHandler.Scan)
		api.GET("/events/:id/checkins", middleware.RequireRole("admin", "organizer"), checkInHandler.ListByEvent)

		// Notifications
		api.GET("/notifications", notifHandler.List)
		api.POST("/notifications/:id/read", notifHandler.MarkRead)
		api.POST("/notifications/read-all", notifHandler.MarkAllRead)

		// Realtime admin surface
		api.POST("/ws/broadcast", middleware.RequireRole("admin"), wsHandler.Broadcast)
		api.POST("/ws/send/:userId", middleware.RequireRole("admin"), wsHandler.SendToUser)
		api.POST("/ws/notify/:userId", middleware.RequireRole("admin"), wsHandler.Notify)
		api.GET("/ws/stats", middleware.RequireRole("admin"), wsHandler.Stats)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Close registration for events past their end time.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case now := <-ticker.C:
				if err := eventRepo.CloseExpired(sweepCtx, now); err != nil {
					logger.Warn("close expired events", zap.Error(err))
				}
			}
		}
	}()

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
