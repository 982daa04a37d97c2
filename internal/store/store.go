package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Snaxxwax/movecrm/internal/auth"
	"github.com/Snaxxwax/movecrm/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store implements auth.CredentialStore on PostgreSQL through gorm. Each
// method runs as a single statement or transaction, which is all the
// serialization the core relies on for concurrent same-row writes.
type Store struct {
	db *gorm.DB
}

// New creates a store on the given database handle
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// storeErr maps driver failures onto the contract's unavailability error so
// callers can surface a 500 without leaking driver details.
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", auth.ErrStoreUnavailable, err)
}

// FindTenantBySlug returns the tenant with the given slug, active or not
func (s *Store) FindTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrTenantNotFound
		}
		return nil, storeErr(err)
	}
	return &tenant, nil
}

// FindUserByEmail returns the user with the given email within a tenant.
// The tenant scope is part of the lookup key; emails never cross tenants.
func (s *Store) FindUserByEmail(ctx context.Context, tenantID uint, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", tenantID, email).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, storeErr(err)
	}
	return &user, nil
}

// InsertUser creates a user, failing with ErrDuplicateUser when the
// (tenant_id, email) pair already exists.
func (s *Store) InsertUser(ctx context.Context, user *model.User) (uint, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.User
		err := tx.Where("tenant_id = ? AND email = ?", user.TenantID, user.Email).
			First(&existing).Error
		if err == nil {
			return auth.ErrDuplicateUser
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return storeErr(err)
		}
		if err := tx.Create(user).Error; err != nil {
			// The unique index still guards the race between the check and
			// the insert.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return auth.ErrDuplicateUser
			}
			return storeErr(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// UpdateLastLogin stamps the user's last successful login
func (s *Store) UpdateLastLogin(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("last_login", time.Now()).Error
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// RecordLoginFailure increments the failure counter under a row lock and
// locks the account once the threshold is reached.
func (s *Store) RecordLoginFailure(ctx context.Context, userID uint, maxAttempts int, lockFor time.Duration) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user model.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, userID).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"failed_login_attempts": user.FailedLoginAttempts + 1,
		}
		if user.FailedLoginAttempts+1 >= maxAttempts {
			updates["locked_until"] = time.Now().Add(lockFor)
		}
		return tx.Model(&user).Updates(updates).Error
	})
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// ResetLoginFailures clears the failure counter and any lockout
func (s *Store) ResetLoginFailures(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"failed_login_attempts": 0,
			"locked_until":          nil,
		}).Error
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// RecordAuditEvent appends an audit log row
func (s *Store) RecordAuditEvent(ctx context.Context, event *model.AuditLog) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return storeErr(err)
	}
	return nil
}
