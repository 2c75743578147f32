package repository

import (
	"context"
	"time"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
)

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id int64) (*model.Order, error)

	// GetForUpdate retrieves an order and locks the row until the transaction ends
	GetForUpdate(ctx context.Context, id int64) (*model.Order, error)

	// UpdateStatus sets the status and stamps updated_at (and completed_at on
	// first completion) with at
	UpdateStatus(ctx context.Context, id int64, status model.OrderStatus, at time.Time) error

	// ListTimeoutCandidates returns pending, non-package orders created before
	// cutoff that have no successful payment
	ListTimeoutCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error)

	// ListStalled returns in-progress orders last updated before cutoff
	ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error)

	// ListCompletedBetween returns completed orders with completed_at in [from, to)
	ListCompletedBetween(ctx context.Context, from, to time.Time, limit int) ([]*model.Order, error)
}
