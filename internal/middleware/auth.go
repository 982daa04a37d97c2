package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Snaxxwax/movecrm/internal/auth"
	"github.com/Snaxxwax/movecrm/internal/model"
	"github.com/Snaxxwax/movecrm/pkg/jwtutil"
	"github.com/Snaxxwax/movecrm/pkg/logger"
	"github.com/Snaxxwax/movecrm/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Echo context keys set by the gates below
const (
	ContextUserID   = "user_id"
	ContextTenantID = "tenant_id"
	ContextRole     = "user_role"
)

// UserID returns the authenticated user ID from the request context
func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(ContextUserID).(uint)
	return id, ok
}

// TenantID returns the resolved tenant ID from the request context, set by
// either the token gate or the tenant-slug gate.
func TenantID(c echo.Context) (uint, bool) {
	id, ok := c.Get(ContextTenantID).(uint)
	return id, ok
}

// Role returns the authenticated user's role from the request context
func Role(c echo.Context) (string, bool) {
	role, ok := c.Get(ContextRole).(string)
	return role, ok
}

// unauthenticated rejects with a deliberately generic 401 body. The reason
// is logged server-side; the response never reveals which check failed.
func unauthenticated(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
}

// RequireAuth validates the Bearer token from the Authorization header and
// attaches the resolved identity to the request context. A rejected request
// never reaches the protected handler.
func RequireAuth(jwtUtil *jwtutil.JWTUtil) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("missing authorization header")
				prometheus.RecordAuthError("missing_token")
				return unauthenticated(c)
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				log.Warn("invalid authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return unauthenticated(c)
			}

			claims, err := jwtUtil.ValidateToken(parts[1])
			if err != nil {
				if errors.Is(err, jwtutil.ErrTokenExpired) {
					log.Warn("expired token")
					prometheus.RecordAuthError("token_expired")
				} else {
					log.Warn("invalid token", zap.Error(err))
					prometheus.RecordAuthError("invalid_token")
				}
				return unauthenticated(c)
			}

			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextTenantID, claims.TenantID)
			c.Set(ContextRole, claims.Role)

			return next(c)
		}
	}
}

// RequireRole gates a handler on the authenticated user's role. The admin
// role satisfies any requirement.
func RequireRole(required string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			role, ok := Role(c)
			if !ok {
				log.Warn("role check without authenticated identity")
				return unauthenticated(c)
			}

			if role != required && role != model.RoleAdmin {
				log.Warn("insufficient role",
					zap.String("required", required),
					zap.String("role", role))
				return c.JSON(http.StatusForbidden, echo.Map{"error": "insufficient privileges"})
			}

			return next(c)
		}
	}
}

// TenantContext resolves the tenant for public endpoints from the
// X-Tenant-Slug header. The resulting context shape matches RequireAuth's,
// so downstream code never branches on how the tenant was established.
func TenantContext(authenticator *auth.Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			slug := c.Request().Header.Get("X-Tenant-Slug")
			if slug == "" {
				log.Warn("missing tenant slug header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid tenant"})
			}

			ctx := logger.WithContext(c.Request().Context(), log)
			tenant, err := authenticator.ResolveTenant(ctx, slug)
			if err != nil {
				log.Warn("unresolvable tenant slug", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid tenant"})
			}

			c.Set(ContextTenantID, tenant.ID)
			return next(c)
		}
	}
}
