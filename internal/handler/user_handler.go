package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Snaxxwax/movecrm/internal/middleware"
	"github.com/Snaxxwax/movecrm/internal/model"
	"github.com/Snaxxwax/movecrm/internal/password"
	"github.com/Snaxxwax/movecrm/internal/validation"
	"github.com/Snaxxwax/movecrm/pkg/logger"
	"github.com/Snaxxwax/movecrm/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserHandler serves the admin user-management endpoints. All queries are
// scoped by the tenant resolved from the caller's token.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler creates the handler on the given database handle
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

func (h *UserHandler) audit(c echo.Context, tenantID uint, action string, resourceID uint, metadata map[string]string) {
	actorID, _ := middleware.UserID(c)
	payload, _ := json.Marshal(metadata)
	event := &model.AuditLog{
		TenantID:     tenantID,
		ActorID:      &actorID,
		Action:       action,
		ResourceType: "user",
		ResourceID:   resourceID,
		IPAddress:    c.RealIP(),
		UserAgent:    c.Request().UserAgent(),
		Metadata:     string(payload),
	}
	if err := h.db.WithContext(c.Request().Context()).Create(event).Error; err != nil {
		logger.FromEcho(c).Error("failed to record audit event", zap.Error(err))
	}
}

// List returns users in the caller's tenant with pagination, optional role
// filter, and name/email search.
func (h *UserHandler) List(c echo.Context) error {
	log := logger.FromEcho(c)

	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}

	query := h.db.WithContext(c.Request().Context()).
		Model(&model.User{}).
		Where("tenant_id = ?", tenantID)

	if role := c.QueryParam("role"); role != "" && model.ValidRole(role) {
		query = query.Where("role = ?", role)
	}

	if search := c.QueryParam("search"); search != "" {
		term, err := validation.SanitizeString(search, 100)
		if err == nil && term != "" {
			pattern := "%" + term + "%"
			query = query.Where(
				"first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?",
				pattern, pattern, pattern)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		log.Error("failed to count users", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an internal error occurred"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var users []model.User
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&users).Error; err != nil {
		log.Error("failed to list users", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an internal error occurred"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"users": users,
		"pagination": map[string]interface{}{
			"page":  page,
			"limit": limit,
			"total": total,
			"pages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// Get returns a single user in the caller's tenant
func (h *UserHandler) Get(c echo.Context) error {
	log := logger.FromEcho(c)

	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	var user model.User
	err = h.db.WithContext(c.Request().Context()).
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		log.Error("failed to get user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an internal error occurred"})
	}

	return c.JSON(http.StatusOK, user)
}

// Update applies a whitelisted set of field changes to a user in the
// caller's tenant.
func (h *UserHandler) Update(c echo.Context) error {
	log := logger.FromEcho(c)

	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	var req struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Phone     *string `json:"phone"`
		Role      *string `json:"role"`
		Active    *bool   `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		value, err := validation.SanitizeString(*req.FirstName, 100)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		updates["first_name"] = value
	}
	if req.LastName != nil {
		value, err := validation.SanitizeString(*req.LastName, 100)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		updates["last_name"] = value
	}
	if req.Phone != nil {
		value, err := validation.Phone(*req.Phone)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		updates["phone"] = value
	}
	if req.Role != nil {
		if !model.ValidRole(*req.Role) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
		}
		updates["role"] = *req.Role
	}
	if req.Active != nil {
		updates["is_active"] = *req.Active
	}

	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no valid fields to update"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := h.db.WithContext(c.Request().Context()).
		Model(&model.User{}).
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		Updates(updates)
	if result.Error != nil {
		log.Error("failed to update user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an internal error occurred"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	h.audit(c, tenantID, "user_updated", uint(userID), map[string]string{})
	prometheus.RecordUserOperation("update")
	log.Info("user updated", zap.Uint64("user_id", userID), zap.Uint("tenant_id", tenantID))

	return c.JSON(http.StatusOK, echo.Map{"message": "user updated"})
}

// Deactivate soft-deletes a user: the account is flagged inactive, never
// physically removed.
func (h *UserHandler) Deactivate(c echo.Context) error {
	log := logger.FromEcho(c)

	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := h.db.WithContext(c.Request().Context()).
		Model(&model.User{}).
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		Update("is_active", false)
	if result.Error != nil {
		log.Error("failed to deactivate user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an internal error occurred"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	h.audit(c, tenantID, "user_deactivated", uint(userID), map[string]string{})
	prometheus.RecordUserOperation("deactivate")
	log.Info("user deactivated", zap.Uint64("user_id", userID), zap.Uint("tenant_id", tenantID))

	return c.JSON(http.StatusOK, echo.Map{"message": "user deactivated"})
}

// ResetPassword sets a new password for a user in the caller's tenant,
// clearing any lockout state.
func (h *UserHandler) ResetPassword(c echo.Context) error {
	log := logger.FromEcho(c)

	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := password.MeetsPolicy(req.Password); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		log.Error("failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an internal error occurred"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := h.db.WithContext(c.Request().Context()).
		Model(&model.User{}).
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		Updates(map[string]interface{}{
			"password_hash":         hash,
			"failed_login_attempts": 0,
			"locked_until":          nil,
		})
	if result.Error != nil {
		log.Error("failed to reset password", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "an internal error occurred"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	h.audit(c, tenantID, "password_reset", uint(userID), map[string]string{})
	prometheus.RecordUserOperation("password_reset")
	log.Info("password reset", zap.Uint64("user_id", userID), zap.Uint("tenant_id", tenantID))

	return c.JSON(http.StatusOK, echo.Map{"message": "password reset successfully"})
}
