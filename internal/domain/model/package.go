package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Package is a catalog offer of prepaid stringing sessions
type Package struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string          `gorm:"size:100;not null" json:"name"`
	Times        int             `gorm:"not null" json:"times"`
	ValidityDays int             `gorm:"not null" json:"validity_days"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Active       bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Package) TableName() string {
	return "packages"
}

// UserPackageStatus represents the state of a package grant
type UserPackageStatus string

const (
	UserPackageStatusActive   UserPackageStatus = "active"
	UserPackageStatusExpired  UserPackageStatus = "expired"
	UserPackageStatusDepleted UserPackageStatus = "depleted"
)

// UserPackage is a package grant. PaymentID is unique: one grant per confirmed payment.
type UserPackage struct {
	ID            int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	PackageID     int64             `gorm:"not null;index" json:"package_id"`
	PaymentID     int64             `gorm:"not null;uniqueIndex" json:"payment_id"`
	Remaining     int               `gorm:"not null" json:"remaining"`
	OriginalTimes int               `gorm:"not null" json:"original_times"`
	ExpiresAt     time.Time         `gorm:"not null" json:"expires_at"`
	Status        UserPackageStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedAt     time.Time         `gorm:"default:now()" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (UserPackage) TableName() string {
	return "user_packages"
}

// GrantFor builds the active grant issued for a confirmed package payment
func (p *Package) GrantFor(userID uuid.UUID, paymentID int64, now time.Time) *UserPackage {
	return &UserPackage{
		UserID:        userID,
		PackageID:     p.ID,
		PaymentID:     paymentID,
		Remaining:     p.Times,
		OriginalTimes: p.Times,
		ExpiresAt:     now.AddDate(0, 0, p.ValidityDays),
		Status:        UserPackageStatusActive,
	}
}
