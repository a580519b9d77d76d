package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kiko9987/itglobal/internal/services"
)

// MissingDataHandler serves the missing-field reports.
type MissingDataHandler struct {
	missingFieldService services.MissingFieldServicer
}

// NewMissingDataHandler creates a new MissingDataHandler.
func NewMissingDataHandler(missingFieldService services.MissingFieldServicer) *MissingDataHandler {
	return &MissingDataHandler{missingFieldService: missingFieldService}
}

// GetMissingData returns every owner's incomplete projects
// @Summary     Get missing project data
// @Description Per-owner reports of projects with empty required fields, with per-field statistics
// @Tags        missing-data
// @Produce     json
// @Success     200 {object} services.MissingData "Missing data"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /missing-data [get]
func (h *MissingDataHandler) GetMissingData(c *gin.Context) {
	data, err := h.missingFieldService.GetMissingData(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// GetFieldStats returns per-field completeness
// @Summary     Get field completeness
// @Tags        missing-data
// @Produce     json
// @Success     200 {object} detect.Stats "Field statistics"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /missing-data/stats [get]
func (h *MissingDataHandler) GetFieldStats(c *gin.Context) {
	stats, err := h.missingFieldService.FieldStats(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
