package handler

import (
	"errors"
	"net/http"

	"github.com/Snaxxwax/movecrm/internal/auth"
	"github.com/Snaxxwax/movecrm/internal/middleware"
	"github.com/Snaxxwax/movecrm/internal/password"
	"github.com/Snaxxwax/movecrm/internal/validation"
	"github.com/Snaxxwax/movecrm/pkg/jwtutil"
	"github.com/Snaxxwax/movecrm/pkg/logger"
	"github.com/Snaxxwax/movecrm/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthHandler serves the login and registration endpoints
type AuthHandler struct {
	authenticator *auth.Authenticator
	jwtUtil       *jwtutil.JWTUtil
}

// NewAuthHandler creates the handler with its dependencies
func NewAuthHandler(authenticator *auth.Authenticator, jwtUtil *jwtutil.JWTUtil) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		jwtUtil:       jwtUtil,
	}
}

// Login authenticates an email/password pair within a tenant and issues a
// session token. All authentication failures return the same 401 body.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		TenantSlug string `json:"tenant_slug"`
	}

	if err := c.Bind(&req); err != nil {
		log.Warn("failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	ctx := logger.WithContext(c.Request().Context(), log)
	identity, err := h.authenticator.Authenticate(ctx, req.Email, req.Password, req.TenantSlug)
	if err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			log.Error("credential store unavailable during login", zap.Error(err))
			prometheus.RecordAuthError("store_unavailable")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an internal error occurred"})
		}
		prometheus.RecordAuthError("login_failure")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := h.jwtUtil.GenerateToken(identity.UserID, identity.TenantID, identity.Role)
	if err != nil {
		log.Error("failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	prometheus.IncreaseActiveTokens()
	log.Info("user logged in",
		zap.Uint("user_id", identity.UserID),
		zap.Uint("tenant_id", identity.TenantID),
		zap.String("role", identity.Role))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":        identity.UserID,
			"email":     identity.Email,
			"tenant_id": identity.TenantID,
			"role":      identity.Role,
		},
	})
}

// Register creates a customer account in the tenant resolved by the
// TenantContext gate.
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	}

	if err := c.Bind(&req); err != nil {
		log.Warn("failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid tenant"})
	}

	ctx := logger.WithContext(c.Request().Context(), log)
	userID, err := h.authenticator.CreateUser(ctx, auth.CreateUserParams{
		TenantID:  tenantID,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, validation.ErrInvalidEmail),
			errors.Is(err, validation.ErrInvalidPhone),
			errors.Is(err, password.ErrWeakPassword):
			log.Warn("registration validation failed", zap.Error(err))
			prometheus.RecordAuthError("invalid_registration")
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		case errors.Is(err, auth.ErrDuplicateUser):
			log.Warn("registration for existing user")
			prometheus.RecordAuthError("duplicate_user")
			return c.JSON(http.StatusConflict, echo.Map{"error": "user already exists"})
		default:
			log.Error("registration failed", zap.Error(err))
			prometheus.RecordAuthError("registration_failed")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
		}
	}

	prometheus.RecordUserOperation("create")
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user registered successfully",
		"user": map[string]interface{}{
			"id": userID,
		},
	})
}
