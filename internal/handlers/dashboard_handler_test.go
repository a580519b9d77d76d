package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/kiko9987/itglobal/internal/aggregate"
	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/report"
	"github.com/kiko9987/itglobal/internal/services"
)

// --- mock snapshot service ---

type mockSnapshotService struct {
	getSnapshotFn func(ctx context.Context) (*services.SnapshotView, error)
	refreshFn     func(ctx context.Context) (*aggregate.Snapshot, error)
	triggered     int
}

func (m *mockSnapshotService) GetSnapshot(ctx context.Context) (*services.SnapshotView, error) {
	if m.getSnapshotFn != nil {
		return m.getSnapshotFn(ctx)
	}
	return &services.SnapshotView{Snapshot: testSnapshot()}, nil
}

func (m *mockSnapshotService) Refresh(ctx context.Context) (*aggregate.Snapshot, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx)
	}
	return testSnapshot(), nil
}

func (m *mockSnapshotService) Trigger() { m.triggered++ }

func (m *mockSnapshotService) Latest() *aggregate.Snapshot { return nil }

func (m *mockSnapshotService) OnSnapshotReady(func(*aggregate.Snapshot)) {}

func (m *mockSnapshotService) Run(context.Context, time.Duration) {}

// verify interface compliance
var _ services.SnapshotServicer = (*mockSnapshotService)(nil)

func testSnapshot() *aggregate.Snapshot {
	return &aggregate.Snapshot{
		GeneratedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Totals: aggregate.Totals{
			ProjectCount: 3,
			RevenueSum:   decimal.NewFromInt(6000000),
		},
		MonthlySeries: []aggregate.MonthlyPoint{
			{Month: "2026-02", Revenue: decimal.NewFromInt(2000000), ProjectCount: 1},
			{Month: "2026-03", Revenue: decimal.NewFromInt(4000000), ProjectCount: 2},
		},
		ByRegion: map[string]aggregate.CategoryStat{
			"A": {Revenue: decimal.NewFromInt(1000000), ProjectCount: 1},
			"B": {Revenue: decimal.NewFromInt(5000000), ProjectCount: 2},
		},
		ByBrand: map[string]aggregate.CategoryStat{
			"LG":      {Revenue: decimal.NewFromInt(3000000), ProjectCount: 1},
			"Samsung": {Revenue: decimal.NewFromInt(3000000), ProjectCount: 2},
		},
		ByOwner: map[string]aggregate.CategoryStat{
			"kim": {Revenue: decimal.NewFromInt(6000000), ProjectCount: 3},
		},
		AgingBuckets: map[string]decimal.Decimal{
			aggregate.Aging0To30:  decimal.NewFromInt(500000),
			aggregate.AgingOver90: decimal.NewFromInt(250000),
		},
		TopOutstanding: []aggregate.OutstandingItem{
			{Code: "B-002", Owner: "kim", Outstanding: decimal.NewFromInt(500000)},
		},
	}
}

func setupDashboardRouter(handler *DashboardHandler) *gin.Engine {
	r := gin.New()
	r.GET("/dashboard/snapshot", handler.GetSnapshot)
	r.GET("/dashboard/summary", handler.GetSummary)
	r.GET("/dashboard/monthly", handler.GetMonthly)
	r.GET("/dashboard/regions", handler.GetRegions)
	r.GET("/dashboard/brands", handler.GetBrands)
	r.GET("/dashboard/owners", handler.GetOwners)
	r.GET("/dashboard/aging", handler.GetAging)
	r.POST("/dashboard/refresh", handler.Refresh)
	r.GET("/dashboard/export", handler.Export)
	return r
}

func TestDashboardHandler_GetSnapshot(t *testing.T) {
	t.Run("reports_stale_flag", func(t *testing.T) {
		svc := &mockSnapshotService{
			getSnapshotFn: func(_ context.Context) (*services.SnapshotView, error) {
				return &services.SnapshotView{Snapshot: testSnapshot(), Stale: true}, nil
			},
		}
		r := setupDashboardRouter(NewDashboardHandler(svc))

		rec := doRequest(r, http.MethodGet, "/dashboard/snapshot", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["stale"] != true {
			t.Error("expected stale=true")
		}
	})

	t.Run("returns_503_without_snapshot", func(t *testing.T) {
		svc := &mockSnapshotService{
			getSnapshotFn: func(_ context.Context) (*services.SnapshotView, error) {
				return nil, apperrors.ErrStoreUnavailable
			},
		}
		r := setupDashboardRouter(NewDashboardHandler(svc))

		rec := doRequest(r, http.MethodGet, "/dashboard/summary", "")

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "STORE_UNAVAILABLE")
	})
}

func TestDashboardHandler_GetSummary(t *testing.T) {
	r := setupDashboardRouter(NewDashboardHandler(&mockSnapshotService{}))

	rec := doRequest(r, http.MethodGet, "/dashboard/summary", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	totals := parseJSON(t, rec)["totals"].(map[string]interface{})
	if totals["project_count"].(float64) != 3 {
		t.Errorf("expected project_count=3, got %v", totals["project_count"])
	}
	if totals["revenue_sum"] != "6000000" {
		t.Errorf("expected revenue_sum 6000000, got %v", totals["revenue_sum"])
	}
}

func TestDashboardHandler_GetMonthly(t *testing.T) {
	r := setupDashboardRouter(NewDashboardHandler(&mockSnapshotService{}))

	rec := doRequest(r, http.MethodGet, "/dashboard/monthly", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	series := parseJSON(t, rec)["series"].([]interface{})
	if len(series) != 2 {
		t.Fatalf("expected 2 points, got %d", len(series))
	}
	if series[0].(map[string]interface{})["month"] != "2026-02" {
		t.Errorf("expected chronological order, got %v", series)
	}
}

func TestDashboardHandler_Categories(t *testing.T) {
	t.Run("regions_sorted_by_revenue", func(t *testing.T) {
		r := setupDashboardRouter(NewDashboardHandler(&mockSnapshotService{}))

		rec := doRequest(r, http.MethodGet, "/dashboard/regions", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		items := parseJSON(t, rec)["items"].([]interface{})
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
		if items[0].(map[string]interface{})["key"] != "B" {
			t.Errorf("expected B first, got %v", items[0])
		}
		if items[0].(map[string]interface{})["project_count"].(float64) != 2 {
			t.Errorf("expected embedded stat fields, got %v", items[0])
		}
	})

	t.Run("brand_ties_break_by_key", func(t *testing.T) {
		r := setupDashboardRouter(NewDashboardHandler(&mockSnapshotService{}))

		rec := doRequest(r, http.MethodGet, "/dashboard/brands", "")

		items := parseJSON(t, rec)["items"].([]interface{})
		if items[0].(map[string]interface{})["key"] != "LG" {
			t.Errorf("expected LG first on tie, got %v", items[0])
		}
	})

	t.Run("owners", func(t *testing.T) {
		r := setupDashboardRouter(NewDashboardHandler(&mockSnapshotService{}))

		rec := doRequest(r, http.MethodGet, "/dashboard/owners", "")

		items := parseJSON(t, rec)["items"].([]interface{})
		if len(items) != 1 || items[0].(map[string]interface{})["key"] != "kim" {
			t.Errorf("unexpected owners %v", items)
		}
	})
}

func TestDashboardHandler_GetAging(t *testing.T) {
	r := setupDashboardRouter(NewDashboardHandler(&mockSnapshotService{}))

	rec := doRequest(r, http.MethodGet, "/dashboard/aging", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	result := parseJSON(t, rec)
	buckets := result["buckets"].([]interface{})
	if len(buckets) != len(aggregate.AgingLabels) {
		t.Fatalf("expected %d buckets, got %d", len(aggregate.AgingLabels), len(buckets))
	}
	for i, label := range aggregate.AgingLabels {
		if buckets[i].(map[string]interface{})["label"] != label {
			t.Errorf("bucket %d: expected %s, got %v", i, label, buckets[i])
		}
	}
	if buckets[0].(map[string]interface{})["outstanding"] != "500000" {
		t.Errorf("expected 0-30 outstanding 500000, got %v", buckets[0])
	}
	if buckets[1].(map[string]interface{})["outstanding"] != "0" {
		t.Errorf("expected empty bucket as 0, got %v", buckets[1])
	}
	if len(result["top_outstanding"].([]interface{})) != 1 {
		t.Error("expected 1 top outstanding entry")
	}
}

func TestDashboardHandler_Refresh(t *testing.T) {
	t.Run("returns_fresh_snapshot", func(t *testing.T) {
		r := setupDashboardRouter(NewDashboardHandler(&mockSnapshotService{}))

		rec := doRequest(r, http.MethodPost, "/dashboard/refresh", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if parseJSON(t, rec)["stale"] != false {
			t.Error("expected stale=false")
		}
	})

	t.Run("returns_503_when_store_down", func(t *testing.T) {
		svc := &mockSnapshotService{
			refreshFn: func(_ context.Context) (*aggregate.Snapshot, error) {
				return nil, apperrors.ErrStoreUnavailable
			},
		}
		r := setupDashboardRouter(NewDashboardHandler(svc))

		rec := doRequest(r, http.MethodPost, "/dashboard/refresh", "")

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})
}

func TestDashboardHandler_Export(t *testing.T) {
	r := setupDashboardRouter(NewDashboardHandler(&mockSnapshotService{}))

	rec := doRequest(r, http.MethodGet, "/dashboard/export", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != report.ContentType {
		t.Errorf("expected content type %s, got %s", report.ContentType, ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "dashboard-20260314-0930.xlsx") {
		t.Errorf("unexpected content disposition %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Error("expected a zip container")
	}
}
