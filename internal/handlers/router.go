package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires the public webhook, health check and admin surface.
func SetupRoutes(r *gin.Engine, wh *WebhookHandler, ah *AdminHandler, adminToken string) {
	r.HandleMethodNotAllowed = true

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.POST("/webhook/:instance", wh.Handle)

	admin := r.Group("/admin", AuthRequired(adminToken))
	{
		admin.GET("/establishments/:id/ai-config", ah.GetConfig)
		admin.PUT("/establishments/:id/ai-config", ah.UpsertConfig)
		admin.POST("/establishments/:id/ai-config/webhook", ah.RegisterWebhook)
	}
}
