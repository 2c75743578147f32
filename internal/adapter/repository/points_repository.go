package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	domainRepo "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
)

type pointsLogRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPointsLogRepository creates a new points log repository instance.
// The log is append-only: there is no update or delete.
func NewPointsLogRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PointsLogRepository {
	return &pointsLogRepository{db: db, logger: logger}
}

func (r *pointsLogRepository) Create(ctx context.Context, entry *model.PointsLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		r.logger.Error("Failed to append points log entry",
			zap.String("user_id", entry.UserID.String()),
			zap.Int64("amount", entry.Amount),
			zap.Error(err))
		return fmt.Errorf("failed to create points log entry: %w", err)
	}
	return nil
}

func (r *pointsLogRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.PointsLogEntry, error) {
	var entries []*model.PointsLogEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list points log: %w", err)
	}
	return entries, nil
}

func (r *pointsLogRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.PointsLogEntry{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count points log: %w", err)
	}
	return count, nil
}

func (r *pointsLogRepository) SumByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.PointsLogEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum points log: %w", err)
	}
	return sum, nil
}
