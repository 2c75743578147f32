package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	domainRepo "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/repository"
	apperrors "github.com/Liwei1020T/appointmentSystem-sub002/pkg/errors"
)

type voucherRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewVoucherRepository creates a new voucher catalog repository instance
func NewVoucherRepository(db *gorm.DB, logger *zap.Logger) domainRepo.VoucherRepository {
	return &voucherRepository{db: db, logger: logger}
}

func (r *voucherRepository) GetByID(ctx context.Context, id int64) (*model.Voucher, error) {
	voucher, err := findOne[model.Voucher](r.db.WithContext(ctx).Where("id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return voucher, nil
}

// GetByCode matches codes case-insensitively
func (r *voucherRepository) GetByCode(ctx context.Context, code string) (*model.Voucher, error) {
	voucher, err := findOne[model.Voucher](r.db.WithContext(ctx).Where("UPPER(code) = ?", strings.ToUpper(code)))
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher by code: %w", err)
	}
	return voucher, nil
}

func (r *voucherRepository) GetForUpdate(ctx context.Context, id int64) (*model.Voucher, error) {
	voucher, err := findOne[model.Voucher](r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
	if err != nil {
		r.logger.Error("Failed to lock voucher row", zap.Int64("voucher_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to lock voucher: %w", err)
	}
	return voucher, nil
}

func (r *voucherRepository) IncrementUsedCount(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Voucher{}).
		Where("id = ?", id).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to increment voucher usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewAppError(apperrors.ErrNotFound, fmt.Sprintf("voucher %d not found", id), nil)
	}
	return nil
}

func (r *voucherRepository) ListRedeemable(ctx context.Context, at time.Time) ([]*model.Voucher, error) {
	var vouchers []*model.Voucher
	err := r.db.WithContext(ctx).
		Where("active = ? AND valid_from <= ? AND valid_until >= ?", true, at, at).
		Where("max_uses = 0 OR used_count < max_uses").
		Order("id ASC").
		Find(&vouchers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list redeemable vouchers: %w", err)
	}
	return vouchers, nil
}

type userVoucherRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUserVoucherRepository creates a new voucher grant repository instance
func NewUserVoucherRepository(db *gorm.DB, logger *zap.Logger) domainRepo.UserVoucherRepository {
	return &userVoucherRepository{db: db, logger: logger}
}

func (r *userVoucherRepository) Create(ctx context.Context, grant *model.UserVoucher) error {
	if err := r.db.WithContext(ctx).Omit("Voucher").Create(grant).Error; err != nil {
		return fmt.Errorf("failed to create user voucher: %w", err)
	}
	return nil
}

func (r *userVoucherRepository) GetByID(ctx context.Context, id int64) (*model.UserVoucher, error) {
	grant, err := findOne[model.UserVoucher](r.db.WithContext(ctx).Where("id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user voucher: %w", err)
	}
	return grant, nil
}

func (r *userVoucherRepository) CountByUserAndVoucher(ctx context.Context, userID uuid.UUID, voucherID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.UserVoucher{}).
		Where("user_id = ? AND voucher_id = ?", userID, voucherID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count user vouchers: %w", err)
	}
	return count, nil
}

func (r *userVoucherRepository) ListByUser(ctx context.Context, userID uuid.UUID, status *model.UserVoucherStatus) ([]*model.UserVoucher, error) {
	q := r.db.WithContext(ctx).Preload("Voucher").Where("user_id = ?", userID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}

	var grants []*model.UserVoucher
	if err := q.Order("id DESC").Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("failed to list user vouchers: %w", err)
	}
	return grants, nil
}

// MarkUsed only transitions an active grant
func (r *userVoucherRepository) MarkUsed(ctx context.Context, id int64, orderID int64, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.UserVoucher{}).
		Where("id = ? AND status = ?", id, model.UserVoucherStatusActive).
		Updates(map[string]interface{}{
			"status":     model.UserVoucherStatusUsed,
			"order_id":   orderID,
			"used_at":    at,
			"updated_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark user voucher used: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewAppError(apperrors.ErrConflict, "voucher is not active", nil)
	}
	return nil
}
