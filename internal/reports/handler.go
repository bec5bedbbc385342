package reports

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

// GetSummary returns the aggregated outcomes for the current window
// @Summary Pipeline outcome summary for the reporting window
// @Tags Reports
// @Produce json
// @Success 200 {object} Summary
// @Router /api/v1/reports/summary [get]
func (h *Handler) GetSummary(c *gin.Context) {
	summary, err := h.service.BuildSummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SendReport triggers report delivery immediately
// @Summary Send the pipeline report now
// @Tags Reports
// @Produce json
// @Success 200 {object} DeliveryResult
// @Router /api/v1/reports/send [post]
func (h *Handler) SendReport(c *gin.Context) {
	result := h.service.SendPipelineReport(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

// ExportReport streams the summary as csv, excel, or pdf
// @Summary Export the pipeline report
// @Tags Reports
// @Produce octet-stream
// @Param format query string false "Export format: csv, excel or pdf (default: csv)"
// @Success 200 {file} byte
// @Failure 400 {object} gin.H
// @Router /api/v1/reports/export [get]
func (h *Handler) ExportReport(c *gin.Context) {
	format := c.DefaultQuery("format", FormatCSV)

	data, filename, contentType, err := h.service.Export(c.Request.Context(), format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, data)
}
