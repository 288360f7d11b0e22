package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/localmind-ai/localmind-backend/internal/llm"
)

type HealthHandler struct {
	llmService *llm.Service
}

func NewHealthHandler(llmService *llm.Service) *HealthHandler {
	return &HealthHandler{llmService: llmService}
}

// HealthCheck reports liveness plus whether a model is currently loaded;
// the server is healthy either way, clients just degrade.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"model_loaded": h.llmService != nil && h.llmService.Loaded(),
	})
}
