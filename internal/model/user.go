package model

import (
	"time"

	"gorm.io/gorm"
)

// User roles. Admin satisfies any role requirement.
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// ValidRole reports whether role is one of the known role names
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

// User represents a user account. Every user belongs to exactly one tenant
// and the tenant never changes after creation. Emails are unique within a
// tenant, not globally. Deletion is a soft deactivate.
type User struct {
	ID                  uint           `json:"id" gorm:"primaryKey"`
	TenantID            uint           `json:"tenant_id" gorm:"uniqueIndex:idx_users_tenant_email;not null"`
	Email               string         `json:"email" gorm:"type:varchar(255);uniqueIndex:idx_users_tenant_email;not null"`
	PasswordHash        string         `json:"-" gorm:"type:varchar(255);not null"`
	Role                string         `json:"role" gorm:"type:varchar(20);not null;default:'customer'"`
	FirstName           string         `json:"first_name" gorm:"type:varchar(100)"`
	LastName            string         `json:"last_name" gorm:"type:varchar(100)"`
	Phone               string         `json:"phone" gorm:"type:varchar(20)"`
	Active              bool           `json:"is_active" gorm:"column:is_active;default:true"`
	EmailVerified       bool           `json:"email_verified" gorm:"default:false"`
	FailedLoginAttempts int            `json:"-" gorm:"default:0"`
	LockedUntil         *time.Time     `json:"locked_until,omitempty"`
	LastLogin           *time.Time     `json:"last_login,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"-" gorm:"index"`
}
