package repository

import (
	"context"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/google/uuid"
)

// PointsLogRepository defines the interface for the append-only points log
type PointsLogRepository interface {
	Create(ctx context.Context, entry *model.PointsLogEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.PointsLogEntry, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// SumByUser returns the sum of all logged amounts for the user
	SumByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}
