package services

import (
	"context"

	"gorm.io/gorm"

	apperrors "github.com/kiko9987/itglobal/internal/errors"
	"github.com/kiko9987/itglobal/internal/logger"
	"github.com/kiko9987/itglobal/internal/models"
	"github.com/kiko9987/itglobal/internal/pagination"
)

// deliveryLogService handles notification delivery log recording.
type deliveryLogService struct {
	db *gorm.DB
}

// NewDeliveryLogService creates a new DeliveryLogServicer.
func NewDeliveryLogService(db *gorm.DB) DeliveryLogServicer {
	return &deliveryLogService{db: db}
}

// Record stores a send attempt. Errors are logged but never propagate
// to avoid disrupting the notification run.
func (s *deliveryLogService) Record(ctx context.Context, entry *models.DeliveryLog) {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create delivery log entry",
			"error", err,
			"run_id", entry.RunID,
			"kind", entry.Kind,
			"owner", entry.Owner,
			"recipient", entry.Recipient,
		)
	}
}

// ListDeliveryLogs retrieves a paginated list of delivery logs, newest first.
func (s *deliveryLogService) ListDeliveryLogs(ctx context.Context, filter DeliveryLogFilter, page pagination.PageRequest) (*pagination.PageResponse[models.DeliveryLog], error) {
	page.Defaults()

	query := s.db.WithContext(ctx).Model(&models.DeliveryLog{})
	if filter.RunID != "" {
		query = query.Where("run_id = ?", filter.RunID)
	}
	if filter.Owner != "" {
		query = query.Where("owner = ?", filter.Owner)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var logs []models.DeliveryLog
	if err := query.Order("created_at DESC, id DESC").
		Scopes(pagination.Paginate(page)).
		Find(&logs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(logs, page.Page, page.PageSize, total)
	return &resp, nil
}
