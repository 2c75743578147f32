package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainErrors "github.com/Liwei1020T/appointmentSystem-sub002/internal/domain/errors"
)

// VoucherType is how a voucher's value is applied
type VoucherType string

const (
	VoucherTypeFixed      VoucherType = "fixed"
	VoucherTypePercentage VoucherType = "percentage"
)

// Voucher is a catalog discount definition. MaxUses of 0 means uncapped.
type Voucher struct {
	ID                    int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	Code                  string           `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name                  string           `gorm:"size:100;not null" json:"name"`
	Type                  VoucherType      `gorm:"size:20;not null" json:"type"`
	Value                 decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"value"`
	MinPurchase           decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0" json:"min_purchase"`
	MaxDiscount           *decimal.Decimal `gorm:"type:decimal(12,2)" json:"max_discount,omitempty"`
	ValidFrom             time.Time        `gorm:"not null" json:"valid_from"`
	ValidUntil            time.Time        `gorm:"not null" json:"valid_until"`
	MaxUses               int              `gorm:"not null;default:0" json:"max_uses"`
	UsedCount             int              `gorm:"not null;default:0" json:"used_count"`
	MaxRedemptionsPerUser int              `gorm:"not null;default:1" json:"max_redemptions_per_user"`
	PointsCost            int64            `gorm:"not null;default:0" json:"points_cost"`
	Active                bool             `gorm:"not null;default:true" json:"active"`
	CreatedAt             time.Time        `gorm:"default:now()" json:"created_at"`
	UpdatedAt             time.Time        `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Voucher) TableName() string {
	return "vouchers"
}

// InWindow reports whether t falls within [ValidFrom, ValidUntil]
func (v *Voucher) InWindow(t time.Time) bool {
	return !t.Before(v.ValidFrom) && !t.After(v.ValidUntil)
}

// Exhausted reports whether the global use cap has been reached
func (v *Voucher) Exhausted() bool {
	return v.MaxUses > 0 && v.UsedCount >= v.MaxUses
}

// PerUserCap returns the per-user redemption cap, at least 1
func (v *Voucher) PerUserCap() int {
	if v.MaxRedemptionsPerUser < 1 {
		return 1
	}
	return v.MaxRedemptionsPerUser
}

// DiscountFor computes the discount this voucher gives on amount
func (v *Voucher) DiscountFor(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.LessThan(v.MinPurchase) {
		return decimal.Zero, domainErrors.NewMinimumPurchaseError(v.MinPurchase, amount)
	}

	var discount decimal.Decimal
	switch v.Type {
	case VoucherTypePercentage:
		discount = amount.Mul(v.Value).Div(decimal.NewFromInt(100))
	default:
		discount = v.Value
	}
	if v.MaxDiscount != nil && discount.GreaterThan(*v.MaxDiscount) {
		discount = *v.MaxDiscount
	}
	if discount.GreaterThan(amount) {
		discount = amount
	}
	return discount.Round(2), nil
}

// UserVoucherStatus represents the state of a voucher grant
type UserVoucherStatus string

const (
	UserVoucherStatusActive  UserVoucherStatus = "active"
	UserVoucherStatusUsed    UserVoucherStatus = "used"
	UserVoucherStatusExpired UserVoucherStatus = "expired"
)

// UserVoucher is a voucher grant to a specific user
type UserVoucher struct {
	ID        int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uuid.UUID         `gorm:"type:uuid;not null;index:idx_user_vouchers_user_voucher" json:"user_id"`
	VoucherID int64             `gorm:"not null;index:idx_user_vouchers_user_voucher" json:"voucher_id"`
	Status    UserVoucherStatus `gorm:"size:20;not null" json:"status"`
	ExpiresAt time.Time         `gorm:"not null" json:"expires_at"`
	OrderID   *int64            `json:"order_id,omitempty"`
	UsedAt    *time.Time        `json:"used_at,omitempty"`
	CreatedAt time.Time         `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time         `gorm:"default:now()" json:"updated_at"`

	Voucher *Voucher `gorm:"foreignKey:VoucherID" json:"voucher,omitempty"`
}

// TableName specifies the table name for GORM
func (UserVoucher) TableName() string {
	return "user_vouchers"
}
