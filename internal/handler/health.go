package handler

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler implements GET /health.
type HealthHandler struct {
	startedAt time.Time
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{startedAt: time.Now()}
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(200, gin.H{
		"status": "healthy",
		"ts":     time.Now().UTC().Format(time.RFC3339),
		"uptime": int(time.Since(h.startedAt).Seconds()),
	})
}
