package model

import (
	"time"

	"github.com/google/uuid"
)

// UserRole distinguishes customers from staff reviewers
type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleAdmin    UserRole = "admin"
)

// User is the account row. Points caches the sum of the user's points log and
// is written only by the points ledger.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"size:100" json:"name"`
	Phone     string    `gorm:"size:30" json:"phone,omitempty"`
	Role      UserRole  `gorm:"size:20;not null;default:'customer';index" json:"role"`
	Points    int64     `gorm:"not null;default:0" json:"points"`
	CreatedAt time.Time `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// Actor is the already-authenticated caller of a usecase
type Actor struct {
	UserID uuid.UUID
	Role   UserRole
}

// IsAdmin reports whether the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
