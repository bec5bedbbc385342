package approval

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

// ===========================
// 📥 POST /webhooks/sms — Twilio inbound message webhook
// Always answers 200 with an empty TwiML document: a non-2xx would make
// Twilio retry the same message and an auto-reply here would confuse the
// approval conversation.
// @Summary Twilio inbound SMS webhook
// @Tags Approval
// @Accept x-www-form-urlencoded
// @Produce xml
// @Success 200 {string} string "empty TwiML response"
// @Router /api/v1/webhooks/sms [post]
func (h *Handler) IncomingSMS(c *gin.Context) {
	from := c.PostForm("From")
	body := c.PostForm("Body")
	messageSID := c.PostForm("MessageSid")

	log.Printf("📥 Inbound SMS %s from %s", messageSID, from)

	decision := h.Service.HandleIncomingResponse(c.Request.Context(), from, body, messageSID)
	if decision != nil {
		log.Printf("✅ Approval %s resolved: approved=%v (event %d)", decision.ApprovalID, decision.Approved, decision.EventID)
	}

	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, "<?xml version=\"1.0\" encoding=\"UTF-8\"?><Response></Response>")
}

// ===========================
// 📋 GET /approvals/pending
// @Summary List pending approval requests
// @Tags Approval
// @Produce json
// @Success 200 {object} gin.H
// @Router /api/v1/approvals/pending [get]
func (h *Handler) ListPending(c *gin.Context) {
	reqs, err := h.Service.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load pending approvals"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":     len(reqs),
		"approvals": reqs,
	})
}
