package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/your-org/salon-receptionist/internal/models"
)

// ConfigResolver loads establishment AI config rows. Always a fresh read:
// activation can be toggled between one message and the next.
type ConfigResolver interface {
	ResolveConfig(ctx context.Context, est uuid.UUID) (models.AIConfig, bool, error)
	ResolveConfigByInstance(ctx context.Context, instanceID string) (models.AIConfig, bool, error)
	UpsertConfig(ctx context.Context, c models.AIConfig) error
}

// EventLogger appends raw webhook payloads to the diagnostics log.
type EventLogger interface {
	LogWebhookEvent(ctx context.Context, est *uuid.UUID, payload []byte)
}

// TurnRunner is the orchestrator entry point.
type TurnRunner interface {
	HandleInbound(ctx context.Context, cfg models.AIConfig, payload []byte) error
}

// WebhookHandler is the HTTP boundary for provider events. It resolves the
// tenant from the instance routing key, acks fast, and runs the turn off the
// request goroutine — webhook callers enforce short timeouts and retry on
// slowness, which compounds duplicate-delivery risk.
type WebhookHandler struct {
	resolver    ConfigResolver
	events      EventLogger
	orch        TurnRunner
	turnTimeout time.Duration
	log         *logrus.Logger
}

func NewWebhookHandler(resolver ConfigResolver, events EventLogger, orch TurnRunner,
	turnTimeout time.Duration, log *logrus.Logger) *WebhookHandler {
	if turnTimeout <= 0 {
		turnTimeout = 2 * time.Minute
	}
	return &WebhookHandler{
		resolver:    resolver,
		events:      events,
		orch:        orch,
		turnTimeout: turnTimeout,
		log:         log,
	}
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	instance := c.Param("instance")
	if instance == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing instance"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 2<<20)) // 2MB
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
		return
	}

	cfg, found, err := h.resolver.ResolveConfigByInstance(c.Request.Context(), instance)
	if err != nil {
		// Store trouble is ours, not the provider's: ack and move on. The
		// payload still lands in the diagnostics log, unattributed.
		h.log.WithError(err).WithField("instance", instance).Error("config resolve failed at ingress")
		h.events.LogWebhookEvent(c.Request.Context(), nil, raw)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	if !found {
		h.events.LogWebhookEvent(c.Request.Context(), nil, raw)
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown instance"})
		return
	}

	est := cfg.EstablishmentID
	h.events.LogWebhookEvent(c.Request.Context(), &est, raw)

	// Inactive looks identical to processed from the outside.
	if !cfg.Active {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	go func(cfg models.AIConfig, payload []byte) {
		ctx, cancel := context.WithTimeout(context.Background(), h.turnTimeout)
		defer cancel()
		if err := h.orch.HandleInbound(ctx, cfg, payload); err != nil {
			h.log.WithError(err).WithField("establishment", cfg.EstablishmentID).Debug("turn ended early")
		}
	}(cfg, raw)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
