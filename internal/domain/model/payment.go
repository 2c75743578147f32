package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending             PaymentStatus = "pending"
	PaymentStatusPendingVerification PaymentStatus = "pending_verification"
	PaymentStatusSuccess             PaymentStatus = "success"
	PaymentStatusRejected            PaymentStatus = "rejected"
	PaymentStatusFailed              PaymentStatus = "failed"
)

// CanSubmitProof reports whether a proof may be attached in this state
func (s PaymentStatus) CanSubmitProof() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPendingVerification, PaymentStatusRejected, PaymentStatusFailed:
		return true
	}
	return false
}

// PaymentProvider identifies how the money was collected
type PaymentProvider string

const (
	ProviderWalletQR PaymentProvider = "wallet-qr"
	ProviderCash     PaymentProvider = "cash"
)

// TargetKind tags what a payment pays for
type TargetKind string

const (
	TargetNone    TargetKind = "none"
	TargetOrder   TargetKind = "order"
	TargetPackage TargetKind = "package"
)

// PaymentTarget is what a payment funds: an order, a package purchase, or
// nothing (standalone store credit).
type PaymentTarget struct {
	Kind TargetKind
	ID   int64
}

// OrderTarget targets a stringing order
func OrderTarget(orderID int64) PaymentTarget {
	return PaymentTarget{Kind: TargetOrder, ID: orderID}
}

// PackageTarget targets a package purchase
func PackageTarget(packageID int64) PaymentTarget {
	return PaymentTarget{Kind: TargetPackage, ID: packageID}
}

// NoTarget is a standalone payment
func NoTarget() PaymentTarget {
	return PaymentTarget{Kind: TargetNone}
}

// Valid reports whether the variant is well formed
func (t PaymentTarget) Valid() bool {
	switch t.Kind {
	case TargetNone:
		return t.ID == 0
	case TargetOrder, TargetPackage:
		return t.ID > 0
	}
	return false
}

// PaymentMetadata carries review and proof details of a payment
type PaymentMetadata struct {
	ProofURL        string     `json:"proof_url,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	SubmittedBy     string     `json:"submitted_by,omitempty"`
	SubmissionCount int        `json:"submission_count,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	VerifiedBy      string     `json:"verified_by,omitempty"`
	VerifyNotes     string     `json:"verify_notes,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectedBy      string     `json:"rejected_by,omitempty"`
	RejectReason    string     `json:"reject_reason,omitempty"`
	CashNote        string     `json:"cash_note,omitempty"`
	PointsEarned    int64      `json:"points_earned,omitempty"`
}

// Payment represents one attempt to pay for an order or a package.
// OrderID and PackageID are mutually exclusive (payments_single_target check).
type Payment struct {
	ID             int64                               `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uuid.UUID                           `gorm:"type:uuid;not null;index" json:"user_id"`
	OrderID        *int64                              `gorm:"index" json:"order_id,omitempty"`
	PackageID      *int64                              `gorm:"index" json:"package_id,omitempty"`
	Amount         decimal.Decimal                     `gorm:"type:decimal(12,2);not null" json:"amount"`
	Provider       PaymentProvider                     `gorm:"size:20;not null" json:"provider"`
	Status         PaymentStatus                       `gorm:"size:30;not null;index" json:"status"`
	TransactionRef *string                             `gorm:"size:100" json:"transaction_ref,omitempty"`
	ReceiptURL     *string                             `gorm:"size:500" json:"receipt_url,omitempty"`
	Metadata       datatypes.JSONType[PaymentMetadata] `json:"metadata"`
	CreatedAt      time.Time                           `gorm:"default:now()" json:"created_at"`
	UpdatedAt      time.Time                           `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// NewPayment builds a pending payment for the given target
func NewPayment(userID uuid.UUID, target PaymentTarget, amount decimal.Decimal, provider PaymentProvider) *Payment {
	p := &Payment{
		UserID:   userID,
		Amount:   amount.Round(2),
		Provider: provider,
		Status:   PaymentStatusPending,
		Metadata: datatypes.NewJSONType(PaymentMetadata{}),
	}
	switch target.Kind {
	case TargetOrder:
		id := target.ID
		p.OrderID = &id
	case TargetPackage:
		id := target.ID
		p.PackageID = &id
	}
	return p
}

// Target returns the tagged view of OrderID/PackageID
func (p *Payment) Target() PaymentTarget {
	switch {
	case p.OrderID != nil:
		return OrderTarget(*p.OrderID)
	case p.PackageID != nil:
		return PackageTarget(*p.PackageID)
	default:
		return NoTarget()
	}
}

// Meta returns a copy of the payment metadata
func (p *Payment) Meta() PaymentMetadata {
	return p.Metadata.Data()
}

// SetMeta replaces the payment metadata
func (p *Payment) SetMeta(m PaymentMetadata) {
	p.Metadata = datatypes.NewJSONType(m)
}
