package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Snaxxwax/movecrm/internal/model"
	"github.com/Snaxxwax/movecrm/internal/password"
	"github.com/Snaxxwax/movecrm/internal/validation"
	"github.com/Snaxxwax/movecrm/pkg/logger"
	"go.uber.org/zap"
)

// Authentication failures collapse to a single error so responses never
// reveal which check failed.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidTenant      = errors.New("invalid tenant")
)

// Account lockout thresholds
const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
)

// Identity is the resolved result of authentication. The token path and the
// tenant-slug path converge on this shape so downstream code never branches
// on how identity was established.
type Identity struct {
	UserID   uint   `json:"user_id"`
	TenantID uint   `json:"tenant_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Authenticator verifies credentials and creates accounts against a
// credential store. Constructed once at startup and shared by all requests.
type Authenticator struct {
	store CredentialStore
	now   func() time.Time
}

// NewAuthenticator creates an authenticator backed by the given store
func NewAuthenticator(store CredentialStore) *Authenticator {
	return &Authenticator{
		store: store,
		now:   time.Now,
	}
}

// Authenticate verifies an email/password pair within a tenant. Unknown
// tenant, unknown user, disabled or locked account, and wrong password all
// fail with the same generic error.
func (a *Authenticator) Authenticate(ctx context.Context, email, pass, tenantSlug string) (*Identity, error) {
	log := logger.FromContext(ctx)

	email, err := validation.Email(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if pass == "" || tenantSlug == "" {
		return nil, ErrInvalidCredentials
	}

	tenant, err := a.ResolveTenant(ctx, tenantSlug)
	if err != nil {
		return nil, err
	}

	user, err := a.store.FindUserByEmail(ctx, tenant.ID, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Warn("login for unknown user", zap.Uint("tenant_id", tenant.ID))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.Active {
		log.Warn("login for disabled account", zap.Uint("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	if user.LockedUntil != nil && user.LockedUntil.After(a.now()) {
		log.Warn("login for locked account", zap.Uint("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	if !password.Verify(pass, user.PasswordHash) {
		if err := a.store.RecordLoginFailure(ctx, user.ID, maxFailedLogins, lockoutDuration); err != nil {
			log.Error("failed to record login failure", zap.Error(err))
		}
		log.Warn("login with wrong password", zap.Uint("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	if err := a.store.ResetLoginFailures(ctx, user.ID); err != nil {
		log.Error("failed to reset login failures", zap.Error(err))
	}
	if err := a.store.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Error("failed to update last login", zap.Error(err))
	}

	return &Identity{
		UserID:   user.ID,
		TenantID: tenant.ID,
		Email:    user.Email,
		Role:     user.Role,
	}, nil
}

// ResolveTenant looks up an active tenant by slug. Used both by login and by
// public endpoints that supply a tenant through the X-Tenant-Slug header.
func (a *Authenticator) ResolveTenant(ctx context.Context, slug string) (*model.Tenant, error) {
	slug, err := validation.Slug(slug)
	if err != nil {
		return nil, ErrInvalidTenant
	}

	tenant, err := a.store.FindTenantBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, ErrInvalidTenant
		}
		return nil, err
	}
	if !tenant.Active {
		return nil, ErrInvalidTenant
	}
	return tenant, nil
}

// CreateUserParams carries the inputs for account creation
type CreateUserParams struct {
	TenantID  uint
	Email     string
	Password  string
	Role      string
	FirstName string
	LastName  string
	Phone     string
	ActorID   *uint
	IPAddress string
	UserAgent string
}

// CreateUser validates inputs, hashes the password, and inserts the account.
// Validation failures are distinct error kinds safe to show to clients.
func (a *Authenticator) CreateUser(ctx context.Context, params CreateUserParams) (uint, error) {
	log := logger.FromContext(ctx)

	email, err := validation.Email(params.Email)
	if err != nil {
		return 0, err
	}

	if err := password.MeetsPolicy(params.Password); err != nil {
		return 0, err
	}

	firstName, err := validation.SanitizeString(params.FirstName, 100)
	if err != nil {
		return 0, err
	}
	lastName, err := validation.SanitizeString(params.LastName, 100)
	if err != nil {
		return 0, err
	}
	phone := params.Phone
	if phone != "" {
		if phone, err = validation.Phone(phone); err != nil {
			return 0, err
		}
	}

	role := params.Role
	if role == "" {
		role = model.RoleCustomer
	}
	if !model.ValidRole(role) {
		return 0, errors.New("invalid role")
	}

	hash, err := password.Hash(params.Password)
	if err != nil {
		return 0, err
	}

	user := &model.User{
		TenantID:     params.TenantID,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    firstName,
		LastName:     lastName,
		Phone:        phone,
		Active:       true,
	}

	userID, err := a.store.InsertUser(ctx, user)
	if err != nil {
		return 0, err
	}

	metadata, _ := json.Marshal(map[string]string{"email": email, "role": role})
	audit := &model.AuditLog{
		TenantID:     params.TenantID,
		ActorID:      params.ActorID,
		Action:       "user_created",
		ResourceType: "user",
		ResourceID:   userID,
		IPAddress:    params.IPAddress,
		UserAgent:    params.UserAgent,
		Metadata:     string(metadata),
	}
	if err := a.store.RecordAuditEvent(ctx, audit); err != nil {
		// Audit failures don't undo the account, but they're never silent.
		log.Error("failed to record audit event", zap.Error(err))
	}

	log.Info("user created", zap.Uint("user_id", userID), zap.Uint("tenant_id", params.TenantID), zap.String("role", role))
	return userID, nil
}
