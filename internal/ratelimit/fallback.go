package ratelimit

import (
	"context"
	"time"

	"github.com/Snaxxwax/movecrm/internal/model"
	"gorm.io/gorm"
)

// DBStore implements FallbackStore on the rate_limit_entries table
type DBStore struct {
	db *gorm.DB
}

// NewDBStore creates a durable fallback store on the given handle
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// CountSince counts recorded requests for the identifier/endpoint pair in
// the current window.
func (s *DBStore) CountSince(ctx context.Context, identifier, endpoint string, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.RateLimitEntry{}).
		Where("identifier = ? AND endpoint = ? AND created_at > ?", identifier, endpoint, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Record inserts one request row
func (s *DBStore) Record(ctx context.Context, identifier, endpoint string, at time.Time) error {
	entry := &model.RateLimitEntry{
		Identifier: identifier,
		Endpoint:   endpoint,
		CreatedAt:  at,
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// DeleteBefore prunes rows older than the cutoff and reports how many went
func (s *DBStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.RateLimitEntry{})
	return result.RowsAffected, result.Error
}
