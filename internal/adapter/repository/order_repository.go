package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	domainRepo "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

type orderRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository instance
func NewOrderRepository(db *gorm.DB, logger *zap.Logger) domainRepo.OrderRepository {
	return &orderRepository{db: db, logger: logger}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	order.ComputeFinalPrice()
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	order, err := findOne[model.Order](r.db.WithContext(ctx).Where("id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) GetForUpdate(ctx context.Context, id int64) (*model.Order, error) {
	order, err := findOne[model.Order](r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
	if err != nil {
		r.logger.Error("Failed to lock order row", zap.Int64("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus, at time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": at,
	}
	if status == model.OrderStatusCompleted {
		updates["completed_at"] = gorm.Expr("COALESCE(completed_at, ?)", at)
	}

	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update order status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewAppError(apperrors.ErrNotFound, fmt.Sprintf("order %d not found", id), nil)
	}
	return nil
}

func (r *orderRepository) ListTimeoutCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND use_package = ? AND created_at < ?", model.OrderStatusPending, false, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM payments p WHERE p.order_id = orders.id AND p.status = ?)", model.PaymentStatusSuccess).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.OrderStatusInProgress, cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stalled orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) ListCompletedBetween(ctx context.Context, from, to time.Time, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND completed_at >= ? AND completed_at < ?", model.OrderStatusCompleted, from, to).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list completed orders: %w", err)
	}
	return orders, nil
}
