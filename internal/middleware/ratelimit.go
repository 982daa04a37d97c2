package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Snaxxwax/movecrm/internal/ratelimit"
	"github.com/Snaxxwax/movecrm/pkg/logger"
	"github.com/Snaxxwax/movecrm/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// clientIP resolves the caller's address, preferring proxy headers
func clientIP(c echo.Context) string {
	if forwarded := c.Request().Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := c.Request().Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "127.0.0.1"
}

func setRateLimitHeaders(c echo.Context, info *ratelimit.Info) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime, 10))
}

func rejectRateLimited(c echo.Context, info *ratelimit.Info, message string) error {
	setRateLimitHeaders(c, info)
	c.Response().Header().Set("Retry-After", strconv.Itoa(info.WindowMinutes*60))
	return c.JSON(http.StatusTooManyRequests, echo.Map{
		"error":      "rate limit exceeded",
		"message":    message,
		"rate_limit": info,
	})
}

// RateLimit gates an endpoint class on the IP axis, the tenant axis, or
// both. Tenant budgets are an order of magnitude above IP budgets since a
// tenant is many users sharing one quota. Either axis failing rejects the
// request before the handler runs, with the failed axis's metadata in the
// response headers.
func RateLimit(limiter *ratelimit.Limiter, endpoint string, perIP, perTenant bool) echo.MiddlewareFunc {
	policy := ratelimit.GetPolicy(endpoint)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)
			ctx := logger.WithContext(c.Request().Context(), log)

			if perIP {
				ip := clientIP(c)
				identifier := "ip:" + ip

				allowed, info := limiter.Check(ctx, identifier, endpoint, policy.Limit, policy.WindowMinutes)
				prometheus.RecordRateLimitDecision("ip", allowed)
				if !allowed {
					log.Warn("rate limit exceeded",
						zap.String("axis", "ip"),
						zap.String("identifier", identifier),
						zap.String("endpoint", endpoint))
					return rejectRateLimited(c, info, fmt.Sprintf("too many requests from IP %s", ip))
				}
				setRateLimitHeaders(c, info)
			}

			if perTenant {
				identifier := tenantIdentifier(c)
				if identifier != "" {
					allowed, info := limiter.Check(ctx, identifier, endpoint,
						policy.Limit*ratelimit.TenantMultiplier, policy.WindowMinutes)
					prometheus.RecordRateLimitDecision("tenant", allowed)
					if !allowed {
						log.Warn("rate limit exceeded",
							zap.String("axis", "tenant"),
							zap.String("identifier", identifier),
							zap.String("endpoint", endpoint))
						return rejectRateLimited(c, info, "too many requests from your organization")
					}
				}
			}

			return next(c)
		}
	}
}

// tenantIdentifier keys the tenant axis by resolved tenant ID when identity
// is established, falling back to the raw slug header for anonymous callers.
func tenantIdentifier(c echo.Context) string {
	if tenantID, ok := TenantID(c); ok {
		return fmt.Sprintf("tenant:%d", tenantID)
	}
	if slug := c.Request().Header.Get("X-Tenant-Slug"); slug != "" {
		return "tenant:slug:" + slug
	}
	return ""
}
