package orchestrator

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RunDiscovery scores discovered events and sends the best for approval
// @Summary Run one discovery and scoring cycle
// @Tags Pipeline
// @Produce json
// @Success 200 {object} gin.H
// @Router /api/v1/pipeline/discover [post]
func (h *Handler) RunDiscovery(c *gin.Context) {
	if err := h.service.RunDiscoveryCycle(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Discovery cycle completed"})
}

// RegisterApproved runs the registration batch for all approved events
// @Summary Register all approved events
// @Tags Pipeline
// @Produce json
// @Success 200 {object} gin.H
// @Router /api/v1/pipeline/register [post]
func (h *Handler) RegisterApproved(c *gin.Context) {
	outcomes := h.service.ProcessApprovedEvents(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"attempted": len(outcomes),
		"outcomes":  outcomes,
	})
}
