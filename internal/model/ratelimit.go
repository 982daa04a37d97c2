package model

import "time"

// RateLimitEntry is one recorded request in the durable rate-limit fallback
// table. Identifiers are opaque strings (ip:<addr> or tenant:<id>) with no
// foreign key into the domain model, so IP limiting works for anonymous
// callers. Rows are pruned periodically past the retention horizon.
type RateLimitEntry struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Identifier string    `json:"identifier" gorm:"type:varchar(255);index:idx_rate_limits_lookup;not null"`
	Endpoint   string    `json:"endpoint" gorm:"type:varchar(100);index:idx_rate_limits_lookup;not null"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}
