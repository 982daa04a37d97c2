package auth

import (
	"context"
	"errors"
	"time"

	"github.com/Snaxxwax/movecrm/internal/model"
)

// Contract errors. The store implementation maps its storage layer's
// failures onto these so the core never sees driver errors.
var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrDuplicateUser    = errors.New("user already exists")
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// CredentialStore is the persistence contract the authentication core
// consumes. Concurrent writes to the same user row are serialized at the
// store's transaction boundary.
type CredentialStore interface {
	FindTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error)
	FindUserByEmail(ctx context.Context, tenantID uint, email string) (*model.User, error)
	InsertUser(ctx context.Context, user *model.User) (uint, error)
	UpdateLastLogin(ctx context.Context, userID uint) error
	RecordLoginFailure(ctx context.Context, userID uint, maxAttempts int, lockFor time.Duration) error
	ResetLoginFailures(ctx context.Context, userID uint) error
	RecordAuditEvent(ctx context.Context, event *model.AuditLog) error
}
