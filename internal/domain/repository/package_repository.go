package repository

import (
	"context"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/google/uuid"
)

// PackageRepository defines the interface for the package catalog
type PackageRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Package, error)
}

// UserPackageRepository defines the interface for package grants
type UserPackageRepository interface {
	// Create inserts a grant. A second grant for the same payment fails with CONFLICT.
	Create(ctx context.Context, grant *model.UserPackage) error
	GetByPaymentID(ctx context.Context, paymentID int64) (*model.UserPackage, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.UserPackage, error)
}
