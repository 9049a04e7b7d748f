package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/your-org/salon-receptionist/internal/evolution"
	"github.com/your-org/salon-receptionist/internal/models"
)

// WebhookConfigurer registers this service's webhook URL with the provider.
type WebhookConfigurer interface {
	ConfigureWebhook(ctx context.Context, cred evolution.Credentials, url string, events []string) error
}

// AdminHandler exposes the per-establishment configuration surface the
// dashboard calls. Credentials go in, never come back out.
type AdminHandler struct {
	resolver      ConfigResolver
	transport     WebhookConfigurer
	publicBaseURL string
	log           *logrus.Logger
}

func NewAdminHandler(resolver ConfigResolver, transport WebhookConfigurer, publicBaseURL string, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		resolver:      resolver,
		transport:     transport,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		log:           log,
	}
}

type aiConfigInput struct {
	Active         bool   `json:"active"`
	ModelAPIKey    string `json:"model_api_key"`
	InstanceID     string `json:"instance_id" binding:"required"`
	InstanceToken  string `json:"instance_token"`
	WelcomeMessage string `json:"welcome_message"`
	ContextPrompt  string `json:"context_prompt"`
}

// UpsertConfig creates or updates the establishment's config row.
func (h *AdminHandler) UpsertConfig(c *gin.Context) {
	est, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid establishment id"})
		return
	}
	var in aiConfigInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	cfg := models.AIConfig{
		EstablishmentID: est,
		Active:          in.Active,
		ModelAPIKey:     in.ModelAPIKey,
		InstanceID:      in.InstanceID,
		InstanceToken:   in.InstanceToken,
		WelcomeMessage:  in.WelcomeMessage,
		ContextPrompt:   in.ContextPrompt,
	}
	if err := h.resolver.UpsertConfig(c.Request.Context(), cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save configuration"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// GetConfig returns the config with credentials redacted: they are write-only
// from any client-facing surface.
func (h *AdminHandler) GetConfig(c *gin.Context) {
	est, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid establishment id"})
		return
	}
	cfg, found, err := h.resolver.ResolveConfig(c.Request.Context(), est)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load configuration"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"establishment_id":   cfg.EstablishmentID,
		"active":             cfg.Active,
		"instance_id":        cfg.InstanceID,
		"welcome_message":    cfg.WelcomeMessage,
		"context_prompt":     cfg.ContextPrompt,
		"model_api_key_set":  cfg.ModelAPIKey != "",
		"instance_token_set": cfg.InstanceToken != "",
		"updated_at":         cfg.UpdatedAt,
	})
}

// RegisterWebhook points the establishment's provider instance at this
// service's ingress URL.
func (h *AdminHandler) RegisterWebhook(c *gin.Context) {
	est, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid establishment id"})
		return
	}
	cfg, found, err := h.resolver.ResolveConfig(c.Request.Context(), est)
	if err != nil || !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not configured"})
		return
	}
	cred := evolution.Credentials{Instance: cfg.InstanceID, Token: cfg.InstanceToken}
	url := h.publicBaseURL + "/webhook/" + cfg.InstanceID
	if err := h.transport.ConfigureWebhook(c.Request.Context(), cred, url, []string{"messages.upsert"}); err != nil {
		h.log.WithError(err).WithField("establishment", est).Error("webhook registration failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "provider rejected webhook configuration"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered", "url": url})
}

// AuthRequired guards admin routes with the service admin token.
func AuthRequired(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
