package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies user-facing messages
type NotificationType string

const (
	NotificationPaymentSubmitted NotificationType = "payment_submitted"
	NotificationPaymentReview    NotificationType = "payment_review"
	NotificationPaymentConfirmed NotificationType = "payment_confirmed"
	NotificationPaymentRejected  NotificationType = "payment_rejected"
	NotificationCashPending      NotificationType = "cash_payment_pending"
	NotificationOrderCancelled   NotificationType = "order_cancelled"
	NotificationOrderStalled     NotificationType = "order_stalled"
	NotificationPickupReminder   NotificationType = "pickup_reminder"
	NotificationVoucherRedeemed  NotificationType = "voucher_redeemed"
)

// Notification is a user-facing message. ReferenceKey identifies the entity it
// reports on (e.g. "order:42") and is used for dedupe.
type Notification struct {
	ID           int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Type         NotificationType `gorm:"size:40;not null;index:idx_notifications_type_ref" json:"type"`
	Title        string           `gorm:"size:200;not null" json:"title"`
	Message      string           `gorm:"type:text;not null" json:"message"`
	ActionURL    *string          `gorm:"size:255" json:"action_url,omitempty"`
	ReferenceKey *string          `gorm:"size:100;index:idx_notifications_type_ref" json:"reference_key,omitempty"`
	Read         bool             `gorm:"not null;default:false" json:"read"`
	ReadAt       *time.Time       `json:"read_at,omitempty"`
	CreatedAt    time.Time        `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Notification) TableName() string {
	return "notifications"
}

// OrderRef is the reference key for an order
func OrderRef(orderID int64) string {
	return fmt.Sprintf("order:%d", orderID)
}

// PaymentRef is the reference key for a payment
func PaymentRef(paymentID int64) string {
	return fmt.Sprintf("payment:%d", paymentID)
}

// VoucherRef is the reference key for a voucher
func VoucherRef(voucherID int64) string {
	return fmt.Sprintf("voucher:%d", voucherID)
}
