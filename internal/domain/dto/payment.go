package dto

import (
	"github.com/shopspring/decimal"
)

// CreatePaymentRequest creates a wallet-qr payment. Exactly one of OrderID,
// PackageID may be set; with neither, Amount funds standalone store credit.
type CreatePaymentRequest struct {
	OrderID   *int64           `json:"order_id" validate:"omitempty,gt=0"`
	PackageID *int64           `json:"package_id" validate:"omitempty,gt=0"`
	Amount    *decimal.Decimal `json:"amount"`
}

// CreateCashPaymentRequest creates a cash payment collected at the counter
type CreateCashPaymentRequest struct {
	OrderID   *int64           `json:"order_id" validate:"omitempty,gt=0"`
	PackageID *int64           `json:"package_id" validate:"omitempty,gt=0"`
	Amount    *decimal.Decimal `json:"amount"`
	Note      string           `json:"note" validate:"max=500"`
}

// SubmitProofRequest attaches an uploaded receipt
type SubmitProofRequest struct {
	ProofURL string `json:"proof_url" validate:"required,url,max=500"`
}

// ConfirmPaymentRequest is sent by a reviewer approving a payment
type ConfirmPaymentRequest struct {
	TransactionRef string `json:"transaction_ref" validate:"max=100"`
	Notes          string `json:"notes" validate:"max=1000"`
}

// RejectPaymentRequest is sent by a reviewer rejecting a payment
type RejectPaymentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ConfirmResult describes the fulfillment performed by a confirmation
type ConfirmResult struct {
	PaymentID     int64  `json:"payment_id"`
	UserPackageID *int64 `json:"user_package_id,omitempty"`
	OrderAdvanced bool   `json:"order_advanced"`
	PointsEarned  int64  `json:"points_earned"`
}
