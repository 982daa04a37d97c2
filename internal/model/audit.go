package model

import "time"

// AuditLog records security-relevant actions (user creation, password
// resets, deactivations) for later review. Append-only.
type AuditLog struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	TenantID     uint      `json:"tenant_id" gorm:"index;not null"`
	ActorID      *uint     `json:"actor_id,omitempty" gorm:"index"`
	Action       string    `json:"action" gorm:"type:varchar(100);not null"`
	ResourceType string    `json:"resource_type" gorm:"type:varchar(50)"`
	ResourceID   uint      `json:"resource_id"`
	IPAddress    string    `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent    string    `json:"user_agent" gorm:"type:varchar(255)"`
	Metadata     string    `json:"metadata" gorm:"type:jsonb"`
	CreatedAt    time.Time `json:"created_at"`
}
