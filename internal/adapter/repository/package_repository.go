package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	domainRepo "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

type packageRepository struct {
	db *gorm.DB
}

// NewPackageRepository creates a new package catalog repository instance
func NewPackageRepository(db *gorm.DB) domainRepo.PackageRepository {
	return &packageRepository{db: db}
}

func (r *packageRepository) GetByID(ctx context.Context, id int64) (*model.Package, error) {
	pkg, err := findOne[model.Package](r.db.WithContext(ctx).Where("id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	return pkg, nil
}

type userPackageRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUserPackageRepository creates a new package grant repository instance
func NewUserPackageRepository(db *gorm.DB, logger *zap.Logger) domainRepo.UserPackageRepository {
	return &userPackageRepository{db: db, logger: logger}
}

// Create inserts a grant; the unique index on payment_id rejects a second
// grant for the same payment
func (r *userPackageRepository) Create(ctx context.Context, grant *model.UserPackage) error {
	err := r.db.WithContext(ctx).Create(grant).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		r.logger.Warn("Duplicate package grant refused", zap.Int64("payment_id", grant.PaymentID))
		return apperrors.NewAppError(apperrors.ErrConflict, "package already granted for this payment", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create user package: %w", err)
	}
	return nil
}

func (r *userPackageRepository) GetByPaymentID(ctx context.Context, paymentID int64) (*model.UserPackage, error) {
	grant, err := findOne[model.UserPackage](r.db.WithContext(ctx).Where("payment_id = ?", paymentID))
	if err != nil {
		return nil, fmt.Errorf("failed to get user package: %w", err)
	}
	return grant, nil
}

func (r *userPackageRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.UserPackage, error) {
	var grants []*model.UserPackage
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("expires_at ASC").
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list user packages: %w", err)
	}
	return grants, nil
}
