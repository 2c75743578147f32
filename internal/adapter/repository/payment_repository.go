package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	domainRepo "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

type paymentRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PaymentRepository {
	return &paymentRepository{db: db, logger: logger}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		r.logger.Error("Failed to create payment",
			zap.String("user_id", payment.UserID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	payment, err := findOne[model.Payment](r.db.WithContext(ctx).Where("id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

func (r *paymentRepository) GetForUpdate(ctx context.Context, id int64) (*model.Payment, error) {
	payment, err := findOne[model.Payment](r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
	if err != nil {
		r.logger.Error("Failed to lock payment row", zap.Int64("payment_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}
	return payment, nil
}

// Update writes the mutable columns of a payment
func (r *paymentRepository) Update(ctx context.Context, payment *model.Payment) error {
	result := r.db.WithContext(ctx).
		Model(&model.Payment{ID: payment.ID}).
		Select("status", "transaction_ref", "receipt_url", "metadata", "updated_at").
		Updates(payment)
	if result.Error != nil {
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewAppError(apperrors.ErrNotFound, fmt.Sprintf("payment %d not found", payment.ID), nil)
	}
	return nil
}

func (r *paymentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// ListByStatus returns the oldest payments first so reviewers work FIFO
func (r *paymentRepository) ListByStatus(ctx context.Context, statuses []model.PaymentStatus, limit int) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments by status: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) HasSuccessfulForOrder(ctx context.Context, orderID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("order_id = ? AND status = ?", orderID, model.PaymentStatusSuccess).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count order payments: %w", err)
	}
	return count > 0, nil
}

// ListByOrderForUpdate locks every payment of the order. A confirmation in
// flight holds its payment row, so callers wait for it to commit.
func (r *paymentRepository) ListByOrderForUpdate(ctx context.Context, orderID int64) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&payments).Error
	if err != nil {
		r.logger.Error("Failed to lock order payments", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to lock order payments: %w", err)
	}
	return payments, nil
}
