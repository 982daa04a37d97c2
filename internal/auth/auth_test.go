package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Snaxxwax/movecrm/internal/model"
	"github.com/Snaxxwax/movecrm/internal/password"
	"github.com/Snaxxwax/movecrm/internal/validation"
)

type fakeStore struct {
	tenants map[string]*model.Tenant
	users   map[uint]*model.User
	audits  []*model.AuditLog
	nextID  uint
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants: make(map[string]*model.Tenant),
		users:   make(map[uint]*model.User),
		nextID:  1,
	}
}

func (s *fakeStore) addTenant(id uint, slug string, active bool) *model.Tenant {
	tenant := &model.Tenant{ID: id, Slug: slug, Active: active}
	s.tenants[slug] = tenant
	return tenant
}

func (s *fakeStore) addUser(t *testing.T, tenantID uint, email, plaintext, role string, active bool) *model.User {
	t.Helper()
	hash, err := password.Hash(plaintext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	user := &model.User{
		ID:           s.nextID,
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       active,
	}
	s.users[user.ID] = user
	s.nextID++
	return user
}

func (s *fakeStore) FindTenantBySlug(_ context.Context, slug string) (*model.Tenant, error) {
	if s.err != nil {
		return nil, s.err
	}
	tenant, ok := s.tenants[slug]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return tenant, nil
}

func (s *fakeStore) FindUserByEmail(_ context.Context, tenantID uint, email string) (*model.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, user := range s.users {
		if user.TenantID == tenantID && user.Email == email {
			return user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *fakeStore) InsertUser(_ context.Context, user *model.User) (uint, error) {
	if s.err != nil {
		return 0, s.err
	}
	for _, existing := range s.users {
		if existing.TenantID == user.TenantID && existing.Email == user.Email {
			return 0, ErrDuplicateUser
		}
	}
	user.ID = s.nextID
	s.users[user.ID] = user
	s.nextID++
	return user.ID, nil
}

func (s *fakeStore) UpdateLastLogin(_ context.Context, userID uint) error {
	if user, ok := s.users[userID]; ok {
		now := time.Now()
		user.LastLogin = &now
	}
	return nil
}

func (s *fakeStore) RecordLoginFailure(_ context.Context, userID uint, maxAttempts int, lockFor time.Duration) error {
	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= maxAttempts {
		until := time.Now().Add(lockFor)
		user.LockedUntil = &until
	}
	return nil
}

func (s *fakeStore) ResetLoginFailures(_ context.Context, userID uint) error {
	if user, ok := s.users[userID]; ok {
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}
	return nil
}

func (s *fakeStore) RecordAuditEvent(_ context.Context, event *model.AuditLog) error {
	s.audits = append(s.audits, event)
	return nil
}

func TestAuthenticateScenario(t *testing.T) {
	store := newFakeStore()
	store.addTenant(1, "acme", true)
	store.addTenant(2, "other-tenant", true)
	store.addUser(t, 1, "a@acme.com", "Passw0rd", model.RoleAdmin, true)

	a := NewAuthenticator(store)
	ctx := context.Background()

	identity, err := a.Authenticate(ctx, "a@acme.com", "Passw0rd", "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.TenantID != 1 || identity.Role != model.RoleAdmin || identity.Email != "a@acme.com" {
		t.Errorf("unexpected identity: %+v", identity)
	}

	if _, err := a.Authenticate(ctx, "a@acme.com", "wrong", "acme"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}

	// Same user, different tenant: credentials never cross tenants.
	if _, err := a.Authenticate(ctx, "a@acme.com", "Passw0rd", "other-tenant"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong tenant: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateRejections(t *testing.T) {
	store := newFakeStore()
	store.addTenant(1, "acme", true)
	store.addTenant(2, "dormant", false)
	store.addUser(t, 1, "a@acme.com", "Passw0rd", model.RoleStaff, true)
	store.addUser(t, 1, "gone@acme.com", "Passw0rd", model.RoleStaff, false)

	a := NewAuthenticator(store)
	ctx := context.Background()

	testCases := []struct {
		name    string
		email   string
		pass    string
		slug    string
		wantErr error
	}{
		{name: "unknown tenant", email: "a@acme.com", pass: "Passw0rd", slug: "nope", wantErr: ErrInvalidTenant},
		{name: "inactive tenant", email: "a@acme.com", pass: "Passw0rd", slug: "dormant", wantErr: ErrInvalidTenant},
		{name: "malformed slug", email: "a@acme.com", pass: "Passw0rd", slug: "not a slug!", wantErr: ErrInvalidTenant},
		{name: "unknown user", email: "b@acme.com", pass: "Passw0rd", slug: "acme", wantErr: ErrInvalidCredentials},
		{name: "disabled account", email: "gone@acme.com", pass: "Passw0rd", slug: "acme", wantErr: ErrInvalidCredentials},
		{name: "invalid email", email: "not-an-email", pass: "Passw0rd", slug: "acme", wantErr: ErrInvalidCredentials},
		{name: "empty password", email: "a@acme.com", pass: "", slug: "acme", wantErr: ErrInvalidCredentials},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := a.Authenticate(ctx, tc.email, tc.pass, tc.slug); !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAuthenticateLockout(t *testing.T) {
	store := newFakeStore()
	store.addTenant(1, "acme", true)
	user := store.addUser(t, 1, "a@acme.com", "Passw0rd", model.RoleCustomer, true)

	a := NewAuthenticator(store)
	ctx := context.Background()

	for i := 0; i < maxFailedLogins; i++ {
		a.Authenticate(ctx, "a@acme.com", "wrong", "acme")
	}
	if user.LockedUntil == nil {
		t.Fatal("expected account to be locked after repeated failures")
	}

	// Even the right password is rejected while locked.
	if _, err := a.Authenticate(ctx, "a@acme.com", "Passw0rd", "acme"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials while locked, got %v", err)
	}

	// After the lockout elapses the account recovers and counters reset.
	past := time.Now().Add(-time.Minute)
	user.LockedUntil = &past
	if _, err := a.Authenticate(ctx, "a@acme.com", "Passw0rd", "acme"); err != nil {
		t.Fatalf("unexpected error after lockout elapsed: %v", err)
	}
	if user.FailedLoginAttempts != 0 || user.LockedUntil != nil {
		t.Error("expected failure state to be cleared on successful login")
	}
	if user.LastLogin == nil {
		t.Error("expected last login to be stamped")
	}
}

func TestAuthenticateStoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.err = ErrStoreUnavailable

	a := NewAuthenticator(store)
	if _, err := a.Authenticate(context.Background(), "a@acme.com", "Passw0rd", "acme"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestCreateUser(t *testing.T) {
	store := newFakeStore()
	store.addTenant(1, "acme", true)

	a := NewAuthenticator(store)
	ctx := context.Background()

	userID, err := a.CreateUser(ctx, CreateUserParams{
		TenantID: 1,
		Email:    "New@Acme.com",
		Password: "Passw0rd",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user := store.users[userID]
	if user == nil {
		t.Fatal("expected user to be stored")
	}
	if user.Email != "new@acme.com" {
		t.Errorf("email = %q, want normalized lowercase", user.Email)
	}
	if user.Role != model.RoleCustomer {
		t.Errorf("role = %q, want default customer", user.Role)
	}
	if user.PasswordHash == "Passw0rd" || user.PasswordHash == "" {
		t.Error("expected password to be stored hashed")
	}
	if !password.Verify("Passw0rd", user.PasswordHash) {
		t.Error("expected stored hash to verify")
	}
	if len(store.audits) != 1 || store.audits[0].Action != "user_created" {
		t.Errorf("expected one user_created audit event, got %+v", store.audits)
	}
}

func TestCreateUserValidation(t *testing.T) {
	store := newFakeStore()
	store.addTenant(1, "acme", true)
	a := NewAuthenticator(store)
	ctx := context.Background()

	testCases := []struct {
		name    string
		params  CreateUserParams
		wantErr error
	}{
		{
			name:    "invalid email",
			params:  CreateUserParams{TenantID: 1, Email: "nope", Password: "Passw0rd"},
			wantErr: validation.ErrInvalidEmail,
		},
		{
			name:    "weak password",
			params:  CreateUserParams{TenantID: 1, Email: "a@acme.com", Password: "short"},
			wantErr: password.ErrWeakPassword,
		},
		{
			name:    "invalid phone",
			params:  CreateUserParams{TenantID: 1, Email: "a@acme.com", Password: "Passw0rd", Phone: "555"},
			wantErr: validation.ErrInvalidPhone,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := a.CreateUser(ctx, tc.params); !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	if _, err := a.CreateUser(ctx, CreateUserParams{
		TenantID: 1, Email: "a@acme.com", Password: "Passw0rd", Role: "superhero",
	}); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestCreateUserTenantIsolation(t *testing.T) {
	store := newFakeStore()
	store.addTenant(1, "acme", true)
	store.addTenant(2, "globex", true)
	a := NewAuthenticator(store)
	ctx := context.Background()

	if _, err := a.CreateUser(ctx, CreateUserParams{TenantID: 1, Email: "a@example.com", Password: "Passw0rd"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same email in a second tenant is a new, independent account.
	if _, err := a.CreateUser(ctx, CreateUserParams{TenantID: 2, Email: "a@example.com", Password: "Passw0rd"}); err != nil {
		t.Fatalf("unexpected error for second tenant: %v", err)
	}

	// The same email within a tenant is a conflict.
	if _, err := a.CreateUser(ctx, CreateUserParams{TenantID: 1, Email: "a@example.com", Password: "Passw0rd"}); !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("expected ErrDuplicateUser, got %v", err)
	}

	// Lookups are scoped by tenant and never cross it.
	userTenant1, err := store.FindUserByEmail(ctx, 1, "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userTenant2, err := store.FindUserByEmail(ctx, 2, "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if userTenant1.ID == userTenant2.ID {
		t.Error("expected distinct users per tenant")
	}
}
