package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the state of a stringing order
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusInProgress      OrderStatus = "in_progress"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusPaymentRejected OrderStatus = "payment_rejected"
)

// Order is a booking for stringing service
type Order struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	Status        OrderStatus     `gorm:"size:30;not null;index" json:"status"`
	StringName    string          `gorm:"size:100" json:"string_name,omitempty"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Discount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	FinalPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"final_price"`
	UsePackage    bool            `gorm:"not null;default:false" json:"use_package"`
	UserVoucherID *int64          `json:"user_voucher_id,omitempty"`
	Notes         string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt     time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"default:now()" json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// ComputeFinalPrice sets FinalPrice to max(price - discount, 0) at cent precision
func (o *Order) ComputeFinalPrice() decimal.Decimal {
	final := o.Price.Sub(o.Discount)
	if final.IsNegative() {
		final = decimal.Zero
	}
	o.FinalPrice = final.Round(2)
	return o.FinalPrice
}
