// Package main runs the collaboration server: HTTP session lifecycle,
// WebSocket event surface, background sweeps, graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pulseboard/backend/config"
	"github.com/pulseboard/backend/internal/identity"
	"github.com/pulseboard/backend/internal/middleware"
	"github.com/pulseboard/backend/internal/models"
	"github.com/pulseboard/backend/internal/realtime"
	"github.com/pulseboard/backend/internal/sessions"
	"github.com/pulseboard/backend/internal/store"
	"github.com/pulseboard/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	registry, err := identity.NewRegistry(logger)
	if err != nil {
		logger.Fatal("identity registry", zap.Error(err))
	}

	estimationStore := store.New[*models.EstimationSession]()
	retroStore := store.New[*models.RetroSession]()

	hub := realtime.NewHub(logger)
	dispatcher := realtime.NewDispatcher(estimationStore, retroStore, registry, hub, logger)
	monitor := realtime.NewMonitor(hub, cfg.Session.HeartbeatInterval, cfg.Session.HeartbeatTimeout, logger)

	sweeper := store.NewSweeper(estimationStore, retroStore, cfg.Session.SweepInterval,
		func(sessionID uuid.UUID) {
			hub.CloseSession(sessionID)
			registry.DropSession(sessionID)
		}, logger)

	sessionHandler := sessions.NewHandler(estimationStore, retroStore, registry, cfg.Session, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Session lifecycle (no auth; the credential returned here is the only identity)
	router.POST("/sessions/estimation", sessionHandler.CreateEstimation)
	router.POST("/sessions/retro", sessionHandler.CreateRetro)
	router.POST("/sessions/:id/join", sessionHandler.Join)
	router.GET("/sessions/:id/exists", sessionHandler.Exists)

	// WebSocket (credential in query)
	router.GET("/ws", realtime.ServeWs(hub, dispatcher, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go sweeper.Run(bgCtx)
	go monitor.Run(bgCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	bgCancel()
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
