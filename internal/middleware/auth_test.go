package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Snaxxwax/movecrm/internal/model"
	"github.com/Snaxxwax/movecrm/pkg/config"
	"github.com/Snaxxwax/movecrm/pkg/jwtutil"
	"github.com/labstack/echo/v4"
)

func newTestJWTUtil(t *testing.T) *jwtutil.JWTUtil {
	t.Helper()
	util, err := jwtutil.NewJWTUtil(&config.JWTConfig{
		SigningKey:      "test-signing-key",
		ExpirationHours: 24,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return util
}

// invoke runs a request through the given middleware chain ending in a
// handler that records whether it ran.
func invoke(t *testing.T, header string, mw ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, bool, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handlerRan := false
	h := func(c echo.Context) error {
		handlerRan = true
		return c.NoContent(http.StatusOK)
	}
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	if err := h(c); err != nil {
		t.Fatalf("unexpected error from chain: %v", err)
	}
	return rec, handlerRan, c
}

func TestRequireAuthMissingOrMalformedHeader(t *testing.T) {
	util := newTestJWTUtil(t)

	testCases := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "no bearer prefix", header: "some-token"},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "empty token", header: "Bearer"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, handlerRan, _ := invoke(t, tc.header, RequireAuth(util))
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if handlerRan {
				t.Error("handler must not run for a rejected request")
			}
		})
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	util := newTestJWTUtil(t)
	token, err := util.GenerateToken(42, 7, model.RoleStaff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, handlerRan, c := invoke(t, "Bearer "+token, RequireAuth(util))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !handlerRan {
		t.Fatal("expected handler to run")
	}

	if id, ok := UserID(c); !ok || id != 42 {
		t.Errorf("user id = %d (%v), want 42", id, ok)
	}
	if id, ok := TenantID(c); !ok || id != 7 {
		t.Errorf("tenant id = %d (%v), want 7", id, ok)
	}
	if role, ok := Role(c); !ok || role != model.RoleStaff {
		t.Errorf("role = %q (%v), want staff", role, ok)
	}
}

func TestRequireAuthExpiredAndTamperedTokens(t *testing.T) {
	util := newTestJWTUtil(t)
	other := func() *jwtutil.JWTUtil {
		u, err := jwtutil.NewJWTUtil(&config.JWTConfig{SigningKey: "other-key", ExpirationHours: 24})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return u
	}()

	foreign, err := other.GenerateToken(42, 7, model.RoleStaff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, header := range []string{"Bearer garbage", "Bearer " + foreign} {
		rec, handlerRan, _ := invoke(t, header, RequireAuth(util))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
		if handlerRan {
			t.Errorf("header %q: handler must not run", header)
		}
	}
}

func TestRequireRole(t *testing.T) {
	util := newTestJWTUtil(t)

	testCases := []struct {
		name       string
		role       string
		required   string
		wantStatus int
	}{
		{name: "exact match", role: model.RoleStaff, required: model.RoleStaff, wantStatus: http.StatusOK},
		{name: "admin passes any requirement", role: model.RoleAdmin, required: model.RoleStaff, wantStatus: http.StatusOK},
		{name: "insufficient role", role: model.RoleCustomer, required: model.RoleStaff, wantStatus: http.StatusForbidden},
		{name: "staff is not admin", role: model.RoleStaff, required: model.RoleAdmin, wantStatus: http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := util.GenerateToken(1, 1, tc.role)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			rec, handlerRan, _ := invoke(t, "Bearer "+token,
				RequireAuth(util), RequireRole(tc.required))
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if handlerRan != (tc.wantStatus == http.StatusOK) {
				t.Errorf("handlerRan = %v for status %d", handlerRan, tc.wantStatus)
			}
		})
	}
}

func TestRequireRoleWithoutIdentity(t *testing.T) {
	rec, handlerRan, _ := invoke(t, "", RequireRole(model.RoleAdmin))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if handlerRan {
		t.Error("handler must not run without identity")
	}
}

func TestRequireAuthDoesNotLeakFailureReason(t *testing.T) {
	util := newTestJWTUtil(t)

	// Missing header, malformed header, and bad token must be
	// indistinguishable from the response body alone.
	bodies := map[string]bool{}
	for _, header := range []string{"", "garbage", "Bearer invalid-token"} {
		rec, _, _ := invoke(t, header, RequireAuth(util))
		bodies[rec.Body.String()] = true
	}
	if len(bodies) != 1 {
		t.Errorf("expected identical generic 401 bodies, got %d variants", len(bodies))
	}
}
