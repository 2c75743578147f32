package repository

import (
	"context"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/google/uuid"
)

// UserRepository defines the interface for user account access.
// Getters return (nil, nil) when the row does not exist.
type UserRepository interface {
	// GetByID retrieves a user
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)

	// GetForUpdate retrieves a user and locks the row until the transaction ends
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.User, error)

	// UpdatePoints writes the cached points balance. Only the points ledger calls this.
	UpdatePoints(ctx context.Context, id uuid.UUID, points int64) error

	// ListAdmins returns every administrator account
	ListAdmins(ctx context.Context) ([]*model.User, error)
}
