package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/kiko9987/itglobal/internal/aggregate"
	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/report"
	"github.com/kiko9987/itglobal/internal/services"
)

// DashboardHandler serves views of the aggregation snapshot.
type DashboardHandler struct {
	snapshotService services.SnapshotServicer
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(snapshotService services.SnapshotServicer) *DashboardHandler {
	return &DashboardHandler{snapshotService: snapshotService}
}

// SummaryResponse carries the headline totals.
type SummaryResponse struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Stale       bool             `json:"stale"`
	Totals      aggregate.Totals `json:"totals"`
}

// MonthlyResponse carries the chronological revenue series.
type MonthlyResponse struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Stale       bool                     `json:"stale"`
	Series      []aggregate.MonthlyPoint `json:"series"`
}

// CategoryItem is one row of a region, brand or owner breakdown.
type CategoryItem struct {
	Key string `json:"key"`
	aggregate.CategoryStat
}

// CategoryResponse carries a breakdown ordered by revenue, largest first.
type CategoryResponse struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Stale       bool           `json:"stale"`
	Items       []CategoryItem `json:"items"`
}

// AgingBucket is one age range of outstanding balances.
type AgingBucket struct {
	Label       string          `json:"label"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// AgingResponse carries the aging buckets in display order and the largest balances.
type AgingResponse struct {
	GeneratedAt    time.Time                   `json:"generated_at"`
	Stale          bool                        `json:"stale"`
	Buckets        []AgingBucket               `json:"buckets"`
	TopOutstanding []aggregate.OutstandingItem `json:"top_outstanding"`
}

// snapshot loads the current view or writes the error response.
func (h *DashboardHandler) snapshot(c *gin.Context) (*services.SnapshotView, bool) {
	view, err := h.snapshotService.GetSnapshot(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}
	return view, true
}

// GetSnapshot returns the full snapshot
// @Summary     Get the dashboard snapshot
// @Description Return the latest aggregation snapshot. stale is true when the last refresh failed.
// @Tags        dashboard
// @Produce     json
// @Success     200 {object} services.SnapshotView "Snapshot"
// @Failure     503 {object} ErrorResponse "Record store unavailable and no snapshot yet"
// @Router      /dashboard/snapshot [get]
func (h *DashboardHandler) GetSnapshot(c *gin.Context) {
	view, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetSummary returns the headline totals
// @Summary     Get dashboard totals
// @Tags        dashboard
// @Produce     json
// @Success     200 {object} SummaryResponse "Totals"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /dashboard/summary [get]
func (h *DashboardHandler) GetSummary(c *gin.Context) {
	view, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SummaryResponse{
		GeneratedAt: view.Snapshot.GeneratedAt,
		Stale:       view.Stale,
		Totals:      view.Snapshot.Totals,
	})
}

// GetMonthly returns the monthly revenue series
// @Summary     Get monthly revenue
// @Tags        dashboard
// @Produce     json
// @Success     200 {object} MonthlyResponse "Monthly series"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /dashboard/monthly [get]
func (h *DashboardHandler) GetMonthly(c *gin.Context) {
	view, ok := h.snapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, MonthlyResponse{
		GeneratedAt: view.Snapshot.GeneratedAt,
		Stale:       view.Stale,
		Series:      view.Snapshot.MonthlySeries,
	})
}

// GetRegions returns the per-region breakdown
// @Summary     Get revenue by region
// @Tags        dashboard
// @Produce     json
// @Success     200 {object} CategoryResponse "Regions"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /dashboard/regions [get]
func (h *DashboardHandler) GetRegions(c *gin.Context) {
	h.categories(c, func(s *aggregate.Snapshot) map[string]aggregate.CategoryStat { return s.ByRegion })
}

// GetBrands returns the per-brand breakdown
// @Summary     Get revenue by brand
// @Tags        dashboard
// @Produce     json
// @Success     200 {object} CategoryResponse "Brands"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /dashboard/brands [get]
func (h *DashboardHandler) GetBrands(c *gin.Context) {
	h.categories(c, func(s *aggregate.Snapshot) map[string]aggregate.CategoryStat { return s.ByBrand })
}

// GetOwners returns the per-owner breakdown
// @Summary     Get revenue by owner
// @Tags        dashboard
// @Produce     json
// @Success     200 {object} CategoryResponse "Owners"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /dashboard/owners [get]
func (h *DashboardHandler) GetOwners(c *gin.Context) {
	h.categories(c, func(s *aggregate.Snapshot) map[string]aggregate.CategoryStat { return s.ByOwner })
}

func (h *DashboardHandler) categories(c *gin.Context, pick func(*aggregate.Snapshot) map[string]aggregate.CategoryStat) {
	view, ok := h.snapshot(c)
	if !ok {
		return
	}

	stats := pick(view.Snapshot)
	items := make([]CategoryItem, 0, len(stats))
	for key, stat := range stats {
		items = append(items, CategoryItem{Key: key, CategoryStat: stat})
	}
	sort.Slice(items, func(i, j int) bool {
		if cmp := items[i].Revenue.Cmp(items[j].Revenue); cmp != 0 {
			return cmp > 0
		}
		return items[i].Key < items[j].Key
	})

	c.JSON(http.StatusOK, CategoryResponse{
		GeneratedAt: view.Snapshot.GeneratedAt,
		Stale:       view.Stale,
		Items:       items,
	})
}

// GetAging returns the outstanding aging buckets
// @Summary     Get outstanding aging
// @Tags        dashboard
// @Produce     json
// @Success     200 {object} AgingResponse "Aging buckets"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /dashboard/aging [get]
func (h *DashboardHandler) GetAging(c *gin.Context) {
	view, ok := h.snapshot(c)
	if !ok {
		return
	}

	buckets := make([]AgingBucket, 0, len(aggregate.AgingLabels))
	for _, label := range aggregate.AgingLabels {
		buckets = append(buckets, AgingBucket{Label: label, Outstanding: view.Snapshot.AgingBuckets[label]})
	}

	c.JSON(http.StatusOK, AgingResponse{
		GeneratedAt:    view.Snapshot.GeneratedAt,
		Stale:          view.Stale,
		Buckets:        buckets,
		TopOutstanding: view.Snapshot.TopOutstanding,
	})
}

// Refresh recomputes the snapshot now
// @Summary     Refresh the dashboard
// @Description Recompute the snapshot from the record store
// @Tags        dashboard
// @Produce     json
// @Success     200 {object} services.SnapshotView "Fresh snapshot"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /dashboard/refresh [post]
func (h *DashboardHandler) Refresh(c *gin.Context) {
	snap, err := h.snapshotService.Refresh(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, services.SnapshotView{Snapshot: snap, RefreshedAt: snap.GeneratedAt})
}

// Export downloads the snapshot as a workbook
// @Summary     Export the dashboard
// @Description Download the snapshot as an xlsx workbook with one sheet per view
// @Tags        dashboard
// @Produce     application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success     200 {file} file "Workbook"
// @Failure     503 {object} ErrorResponse "Record store unavailable"
// @Router      /dashboard/export [get]
func (h *DashboardHandler) Export(c *gin.Context) {
	view, ok := h.snapshot(c)
	if !ok {
		return
	}

	f, err := report.ExportSnapshot(view.Snapshot)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}
	defer func() { _ = f.Close() }()

	buf, err := f.WriteToBuffer()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	filename := fmt.Sprintf("dashboard-%s.xlsx", view.Snapshot.GeneratedAt.Format("20060102-1504"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}
