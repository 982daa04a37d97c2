package model

import (
	"time"

	"gorm.io/gorm"
)

// Tenant represents an isolated customer organization. All data is scoped by
// tenant ID; tenants are never removed, only deactivated.
type Tenant struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(100)"`
	Slug      string         `json:"slug" gorm:"type:varchar(50);uniqueIndex;not null"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
