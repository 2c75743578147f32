package repository

import (
	"context"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/google/uuid"
)

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	GetByID(ctx context.Context, id int64) (*model.Payment, error)

	// GetForUpdate retrieves a payment and locks the row until the transaction ends
	GetForUpdate(ctx context.Context, id int64) (*model.Payment, error)

	Update(ctx context.Context, payment *model.Payment) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Payment, error)
	ListByStatus(ctx context.Context, statuses []model.PaymentStatus, limit int) ([]*model.Payment, error)

	// HasSuccessfulForOrder reports whether any payment for the order reached success
	HasSuccessfulForOrder(ctx context.Context, orderID int64) (bool, error)

	// ListByOrderForUpdate locks and returns every payment of the order
	ListByOrderForUpdate(ctx context.Context, orderID int64) ([]*model.Payment, error)
}
