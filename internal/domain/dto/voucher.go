package dto

import "github.com/shopspring/decimal"

// RedeemByCodeRequest redeems a voucher by its public code
type RedeemByCodeRequest struct {
	Code      string `json:"code" validate:"required,max=50"`
	UsePoints bool   `json:"use_points"`
}

// RedeemByIDRequest redeems a catalog voucher, optionally paying points
type RedeemByIDRequest struct {
	PointsOffered int64 `json:"points_offered" validate:"gte=0"`
}

// RedeemableVoucher is a catalog voucher annotated for a specific user
type RedeemableVoucher struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Value          decimal.Decimal `json:"value"`
	MinPurchase    decimal.Decimal `json:"min_purchase"`
	PointsCost     int64           `json:"points_cost"`
	Redeemed       int64           `json:"redeemed"`
	RemainingQuota int64           `json:"remaining_quota"`
	Affordable     bool            `json:"affordable"`
}

// DiscountPreview is the discount a voucher grant would give on an amount
type DiscountPreview struct {
	UserVoucherID int64           `json:"user_voucher_id"`
	Amount        decimal.Decimal `json:"amount"`
	Discount      decimal.Decimal `json:"discount"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
}
