package event

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

// ===========================
// 🎯 POST /events — discovery intake (batch)
// @Summary Ingest candidate events
// @Tags Events
// @Accept json
// @Produce json
// @Success 201 {object} gin.H
// @Failure 400 {object} gin.H
// @Router /api/v1/events [post]
func (h *Handler) IngestCandidates(c *gin.Context) {
	var reqs []CreateEventRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	created := make([]Event, 0, len(reqs))
	failed := 0

	for i := range reqs {
		e, err := h.Service.IngestCandidate(c.Request.Context(), &reqs[i])
		if err != nil {
			failed++
			continue
		}
		created = append(created, *e)
	}

	c.JSON(http.StatusCreated, gin.H{
		"created": len(created),
		"failed":  failed,
		"events":  created,
	})
}

// ===========================
// 🔍 GET /events/:id
// @Summary Get one event
// @Tags Events
// @Produce json
// @Param id path uint true "Event ID"
// @Success 200 {object} Event
// @Failure 404 {object} gin.H
// @Router /api/v1/events/{id} [get]
func (h *Handler) GetEvent(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	e, err := h.Service.GetEventByID(c.Request.Context(), uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	c.JSON(http.StatusOK, e)
}

// ===========================
// 📄 GET /events?status=&search=&limit=&offset=
// @Summary List events
// @Tags Events
// @Produce json
// @Param status query string false "Filter by lifecycle status"
// @Param search query string false "Search in title and description"
// @Param limit query int false "Page size (default: 20, max: 100)"
// @Param offset query int false "Offset into the result set"
// @Success 200 {object} gin.H
// @Router /api/v1/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	search := c.Query("search")
	status := c.Query("status")

	events, err := h.Service.ListEvents(c.Request.Context(), limit, offset, search, status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// ===========================
// 📊 GET /events/stats
// @Summary Pipeline counts per lifecycle status
// @Tags Events
// @Produce json
// @Success 200 {object} EventStatsResponse
// @Router /api/v1/events/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.Service.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
