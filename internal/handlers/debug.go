package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ahmedit-11/artfolio-chat/internal/models"
	"github.com/ahmedit-11/artfolio-chat/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.NotificationEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/notify-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notification emitter not configured"})
			return
		}
		sentAt := time.Now().UTC()
		emitter.NewMessage(c.Request.Context(), userIDFromContext(c), models.Notification{
			ChatID:     "debug",
			SenderID:   "debug",
			SenderName: "Debug",
			Text:       "notification test " + requestIDFromContext(c),
			SentAt:     &sentAt,
		})
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
