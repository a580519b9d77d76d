package services

import (
	"context"
	"time"

	"github.com/kiko9987/itglobal/internal/aggregate"
	"github.com/kiko9987/itglobal/internal/compute"
	"github.com/kiko9987/itglobal/internal/detect"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/notify"
	"github.com/kiko9987/itglobal/internal/pagination"
	"github.com/kiko9987/itglobal/internal/report"
	"github.com/kiko9987/itglobal/internal/store"
)

// CodeGenerator issues project codes.
type CodeGenerator interface {
	GenerateCode(ctx context.Context, region string) (string, error)
	PreviewCode(ctx context.Context, region string) (string, error)
}

// ProjectServicer defines the contract for project-related business logic.
type ProjectServicer interface {
	CreateProject(ctx context.Context, in compute.Input) (*compute.Result, error)
	GetProject(ctx context.Context, code string) (*models.Project, error)
	ListProjects(ctx context.Context, filter store.Filter, page pagination.PageRequest) (*pagination.PageResponse[models.Project], error)
	UpdateProject(ctx context.Context, code string, patch compute.Input) (*compute.Result, error)
	DeleteProject(ctx context.Context, code string) error
	PreviewCode(ctx context.Context, region string) (string, error)
	// ExportProjects returns every project matching filter, ordered by code.
	ExportProjects(ctx context.Context, filter store.Filter) ([]models.Project, error)
}

// ProjectImporter loads workbook rows into the record store.
type ProjectImporter interface {
	Import(ctx context.Context, rows []report.Row) (*ImportSummary, error)
}

// SnapshotView is the dashboard's view of the latest snapshot. Stale is set
// when the most recent refresh failed and an older snapshot is served.
type SnapshotView struct {
	Snapshot    *aggregate.Snapshot `json:"snapshot"`
	Stale       bool                `json:"stale"`
	RefreshedAt time.Time           `json:"refreshed_at"`
}

// SnapshotServicer defines the contract for aggregation snapshot access.
type SnapshotServicer interface {
	GetSnapshot(ctx context.Context) (*SnapshotView, error)
	Refresh(ctx context.Context) (*aggregate.Snapshot, error)
	// Trigger requests an asynchronous refresh. Requests made while one is
	// pending are coalesced.
	Trigger()
	// Latest returns the last good snapshot without touching the store.
	Latest() *aggregate.Snapshot
	OnSnapshotReady(fn func(*aggregate.Snapshot))
	Run(ctx context.Context, interval time.Duration)
}

// MissingData is the dashboard's completeness view.
type MissingData struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Reports     []*detect.Report `json:"reports"`
	Stats       detect.Stats     `json:"stats"`
}

// MissingFieldServicer defines the contract for missing-field detection.
type MissingFieldServicer interface {
	RunMissingFieldCheck(ctx context.Context) (map[string]*detect.Report, error)
	GetMissingData(ctx context.Context) (*MissingData, error)
	FieldStats(ctx context.Context) (*detect.Stats, error)
}

// DeliveryLogFilter holds optional filter parameters for listing delivery logs.
type DeliveryLogFilter struct {
	RunID  string
	Owner  string
	Status models.DeliveryStatus
}

// DeliveryLogServicer defines the contract for notification delivery logs.
type DeliveryLogServicer interface {
	Record(ctx context.Context, entry *models.DeliveryLog)
	ListDeliveryLogs(ctx context.Context, filter DeliveryLogFilter, page pagination.PageRequest) (*pagination.PageResponse[models.DeliveryLog], error)
}

// ChangePublisher is told about every successful project write.
type ChangePublisher interface {
	PublishChange(code, action string)
}

// NotificationRunner starts notification runs on demand. *notify.Scheduler
// implements it.
type NotificationRunner interface {
	RunOnce(ctx context.Context) (*notify.RunSummary, error)
	SendDailySummary(ctx context.Context) (*notify.SummaryResult, error)
}

var _ NotificationRunner = (*notify.Scheduler)(nil)
var _ notify.DeliveryRecorder = (DeliveryLogServicer)(nil)
var _ notify.SnapshotSource = (SnapshotServicer)(nil)
