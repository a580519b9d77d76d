package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/pagination"
	"github.com/kiko9987/itglobal/internal/services"
)

// NotificationHandler handles pipeline-triggered notification runs.
type NotificationHandler struct {
	runner     services.NotificationRunner
	logService services.DeliveryLogServicer
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(runner services.NotificationRunner, logService services.DeliveryLogServicer) *NotificationHandler {
	return &NotificationHandler{runner: runner, logService: logService}
}

// DeliveryLogQuery holds the optional delivery log filters.
type DeliveryLogQuery struct {
	RunID  string `form:"run_id" binding:"omitempty,uuid"`
	Owner  string `form:"owner" binding:"max=100"`
	Status string `form:"status" binding:"omitempty,oneof=sent failed"`
}

// RunNotifications runs the missing-data digest now
// @Summary     Run missing-data notifications
// @Description Detect missing fields and notify every owner whose report changed today
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} notify.RunSummary "Run summary"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /pipeline/notifications/run [post]
func (h *NotificationHandler) RunNotifications(c *gin.Context) {
	summary, err := h.runner.RunOnce(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SendSummary sends the admin daily summary now
// @Summary     Send the admin daily summary
// @Description Send the daily summary to every admin recipient unless it already went out today
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} notify.SummaryResult "Summary result"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /pipeline/notifications/summary [post]
func (h *NotificationHandler) SendSummary(c *gin.Context) {
	result, err := h.runner.SendDailySummary(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListDeliveryLogs lists notification send attempts
// @Summary     List delivery logs
// @Tags        pipeline
// @Produce     json
// @Security    ApiKeyAuth
// @Param       run_id    query string false "Run ID"
// @Param       owner     query string false "Owner"
// @Param       status    query string false "Status" Enums(sent, failed)
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Page size"
// @Success     200 {object} pagination.PageResponse[models.DeliveryLog] "Paginated delivery logs"
// @Failure     400 {object} ErrorResponse "Invalid filter"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /pipeline/notifications/logs [get]
func (h *NotificationHandler) ListDeliveryLogs(c *gin.Context) {
	var query DeliveryLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		badRequest(c, err)
		return
	}

	filter := services.DeliveryLogFilter{
		RunID:  query.RunID,
		Owner:  query.Owner,
		Status: models.DeliveryStatus(query.Status),
	}
	result, err := h.logService.ListDeliveryLogs(c.Request.Context(), filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
