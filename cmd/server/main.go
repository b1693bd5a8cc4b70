package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-crm/internal/api"
	"whatsapp-crm/internal/config"
	"whatsapp-crm/internal/database"
	"whatsapp-crm/internal/dispatch"
	"whatsapp-crm/internal/logging"
	"whatsapp-crm/internal/store"
	"whatsapp-crm/internal/webhook"
	"whatsapp-crm/internal/whatsapp"
	"whatsapp-crm/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, envLoaded := config.LoadConfig()
	log := logging.New(os.Stdout, cfg.LogLevel)
	if !envLoaded {
		log.Info().Msg("no .env file found, using process environment")
	}

	db, err := database.Open(cfg, log.Sub("database"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	database.SyncConfig(db, cfg, log.Sub("database"))
	if cfg.VerifyToken == "" {
		log.Warn().Msg("VERIFY_TOKEN is empty, webhook verification will always fail")
	}

	st := store.New(db)
	whatsappClient := whatsapp.NewClient(cfg)
	hub := ws.NewHub(log.Sub("ws"))
	ingestor := webhook.NewIngestor(st, hub, log.Sub("webhook"))
	dispatcher := dispatch.New(st, whatsappClient, hub, log.Sub("dispatch"))

	webhookHandler := webhook.NewHandler(cfg, st, ingestor, log.Sub("webhook"))
	handlers := api.NewHandlers(st, dispatcher, log.Sub("api"))

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), log.Sub("http").Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", api.WorkspaceHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unreachable"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "database": dbStatus, "timestamp": time.Now().UTC()})
	})

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleMessage)

	// Dashboard API Routes
	handlers.Register(r.Group("/api"))
	r.GET("/ws", hub.ServeWs)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
