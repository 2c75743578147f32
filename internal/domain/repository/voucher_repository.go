package repository

import (
	"context"
	"time"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/model"
	"github.com/google/uuid"
)

// VoucherRepository defines the interface for the voucher catalog
type VoucherRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Voucher, error)
	GetByCode(ctx context.Context, code string) (*model.Voucher, error)

	// GetForUpdate retrieves a voucher and locks the row until the transaction ends
	GetForUpdate(ctx context.Context, id int64) (*model.Voucher, error)

	// IncrementUsedCount adds one to used_count
	IncrementUsedCount(ctx context.Context, id int64) error

	// ListRedeemable returns active vouchers whose window contains at and whose global cap is not reached
	ListRedeemable(ctx context.Context, at time.Time) ([]*model.Voucher, error)
}

// UserVoucherRepository defines the interface for voucher grants
type UserVoucherRepository interface {
	Create(ctx context.Context, grant *model.UserVoucher) error
	GetByID(ctx context.Context, id int64) (*model.UserVoucher, error)

	// CountByUserAndVoucher counts grants of a voucher held by a user, in any status
	CountByUserAndVoucher(ctx context.Context, userID uuid.UUID, voucherID int64) (int64, error)

	// ListByUser returns the user's grants, optionally filtered by status, newest first
	ListByUser(ctx context.Context, userID uuid.UUID, status *model.UserVoucherStatus) ([]*model.UserVoucher, error)

	// MarkUsed consumes an active grant for an order
	MarkUsed(ctx context.Context, id int64, orderID int64, at time.Time) error
}
