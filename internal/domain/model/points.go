package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PointsType represents the reason for a balance change
type PointsType string

const (
	PointsTypeEarn   PointsType = "earn"
	PointsTypeSpend  PointsType = "spend"
	PointsTypeRedeem PointsType = "redeem"
	PointsTypeRefund PointsType = "refund"
)

// Valid reports whether the type is one of the known kinds
func (t PointsType) Valid() bool {
	switch t {
	case PointsTypeEarn, PointsTypeSpend, PointsTypeRedeem, PointsTypeRefund:
		return true
	}
	return false
}

// Scan implements the sql.Scanner interface
func (t *PointsType) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*t = PointsType(v)
	case []byte:
		*t = PointsType(v)
	default:
		return fmt.Errorf("failed to scan PointsType: %v", value)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (t PointsType) Value() (driver.Value, error) {
	return string(t), nil
}

// PointsLogEntry is an immutable record of one balance change
type PointsLogEntry struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount       int64      `gorm:"not null" json:"amount"`
	Type         PointsType `gorm:"size:20;not null" json:"type"`
	ReferenceID  *string    `gorm:"size:100;index" json:"reference_id,omitempty"`
	Description  string     `gorm:"size:255" json:"description"`
	BalanceAfter int64      `gorm:"not null" json:"balance_after"`
	CreatedAt    time.Time  `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (PointsLogEntry) TableName() string {
	return "points_log"
}
