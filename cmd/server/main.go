package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/your-org/salon-receptionist/internal/ai"
	"github.com/your-org/salon-receptionist/internal/config"
	"github.com/your-org/salon-receptionist/internal/db"
	"github.com/your-org/salon-receptionist/internal/dispatcher"
	"github.com/your-org/salon-receptionist/internal/evolution"
	"github.com/your-org/salon-receptionist/internal/handlers"
	"github.com/your-org/salon-receptionist/internal/orchestrator"
	"github.com/your-org/salon-receptionist/internal/store"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load(log)
	log.SetLevel(cfg.LogrusLevel())

	// DB
	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer pool.Close()

	if err := db.AutoMigrate(context.Background(), pool); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	st := store.New(pool, log)
	transport := evolution.New(cfg.ProviderBaseURL, cfg.DefaultCountryCode, log)
	model := ai.New(cfg.ChatModel, cfg.TranscribeModel)
	disp := dispatcher.New(transport, cfg.SendRate, cfg.SendBurst, log)

	orch := orchestrator.New(st, transport, model, model, disp, orchestrator.Settings{
		CountryCode:       cfg.DefaultCountryCode,
		Language:          cfg.DefaultLanguage,
		HistoryLimit:      cfg.HistoryLimit,
		DuplicateWindow:   cfg.DuplicateWindow,
		ModelTimeout:      cfg.ModelTimeout,
		TranscribeTimeout: cfg.TranscribeTimeout,
	}, log)

	wh := handlers.NewWebhookHandler(st, st, orch, cfg.TurnTimeout, log)
	ah := handlers.NewAdminHandler(st, transport, cfg.PublicBaseURL, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handlers.SetupRoutes(r, wh, ah, cfg.AdminToken)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Infof("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("server error: %v", err)
		os.Exit(1)
	}
}
