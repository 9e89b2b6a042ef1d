package histousers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/southerniot/dashboard/internal/domain/activity"
	"github.com/southerniot/dashboard/internal/platform/auth"
	"github.com/southerniot/dashboard/internal/platform/db"
	"github.com/southerniot/dashboard/pkg/pagination"
)

// ActivityLog is the slice of the activity service the lab handlers use.
type ActivityLog interface {
	Record(ctx context.Context, e activity.Entry)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*activity.Entry, error)
}

type Handler struct {
	svc      *Service
	activity ActivityLog
	issuer   auth.TokenIssuer
}

func NewHandler(svc *Service, activityLog ActivityLog, issuer auth.TokenIssuer) *Handler {
	return &Handler{svc: svc, activity: activityLog, issuer: issuer}
}

func (h *Handler) RegisterRoutes(histo *echo.Group) {
	realm := auth.RequireRealm(auth.RealmHisto)

	authGroup := histo.Group("/auth")
	authGroup.POST("/login", h.Login)
	authGroup.POST("/register", h.RegisterFirstAdmin)
	authGroup.POST("/logout", h.Logout, realm)
	authGroup.POST("/refresh", h.Refresh, realm)
	authGroup.GET("/me", h.Me, realm)

	admin := auth.RequireRole(RoleAdmin)
	users := histo.Group("/users", realm)
	users.POST("", h.CreateUser, admin)
	users.GET("", h.ListUsers, admin)
	users.GET("/:id", h.GetUser, admin)
	users.PUT("/:id", h.UpdateUser, admin)
	users.DELETE("/:id", h.DeleteUser, admin)
	users.GET("/:id/activity", h.GetUserActivity, admin)
	users.POST("/:id/change-password", h.ChangePassword)
}

// -- Auth --

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	u, err := h.svc.Authenticate(ctx, req.Username, req.Password)
	switch {
	case errors.Is(err, ErrBadCredentials):
		c.Response().Header().Set("WWW-Authenticate", "Bearer")
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
	case errors.Is(err, ErrInactive):
		return echo.NewHTTPError(http.StatusBadRequest, "User account is inactive")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	token, err := h.issuer.Issue(u.Username, u.ID, u.Role, db.TenantFromContext(ctx), auth.RealmHisto)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}

	h.activity.Record(ctx, activity.FromEcho(c, u.ID, activity.ActionLogin).With("role", u.Role))

	return c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// RegisterFirstAdmin bootstraps the very first account. Once any user
// exists, the endpoint refuses and accounts come from an admin.
func (h *Handler) RegisterFirstAdmin(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	u, err := h.svc.RegisterFirstAdmin(c.Request().Context(), req)
	switch {
	case errors.Is(err, ErrRegistrationClosed):
		return echo.NewHTTPError(http.StatusBadRequest, "Registration is closed. Please contact administrator.")
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrUsernameTaken):
		return echo.NewHTTPError(http.StatusBadRequest, "Email or username already registered")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if userID := auth.UserIDFromContext(ctx); userID != 0 {
		h.activity.Record(ctx, activity.FromEcho(c, userID, activity.ActionLogout))
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

// Refresh reissues a token from the database row, so a role change or
// deactivation since login takes effect here.
func (h *Handler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := h.svc.Get(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
	}
	if !u.IsActive {
		return echo.NewHTTPError(http.StatusBadRequest, "User account is inactive")
	}

	token, err := h.issuer.Issue(u.Username, u.ID, u.Role, db.TenantFromContext(ctx), auth.RealmHisto)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) Me(c echo.Context) error {
	u, err := h.svc.Get(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, u)
}

// -- User management (admin) --

func (h *Handler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	u, err := h.svc.Create(c.Request().Context(), req)
	switch {
	case errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusBadRequest, "Email already registered")
	case errors.Is(err, ErrUsernameTaken):
		return echo.NewHTTPError(http.StatusBadRequest, "Username already taken")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Role:   c.QueryParam("role"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	}
	if v := c.QueryParam("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid is_active")
		}
		f.IsActive = &active
	}

	items, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*User{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	u, err := h.svc.Update(c.Request().Context(), id, req)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	case errors.Is(err, ErrEmailTaken):
		return echo.NewHTTPError(http.StatusBadRequest, "Email already registered")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetUserActivity(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	if _, err := h.svc.Get(ctx, id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}

	pg := pagination.FromContext(c)
	entries, err := h.activity.ListByUser(ctx, id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []*activity.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// ChangePassword is self-service; an admin can also reset another user's
// password, but the current password is verified either way.
func (h *Handler) ChangePassword(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ctx := c.Request().Context()
	if auth.UserIDFromContext(ctx) != id && auth.RoleFromContext(ctx) != RoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
	}

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	err = h.svc.ChangePassword(ctx, id, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	case errors.Is(err, ErrWrongPassword):
		return echo.NewHTTPError(http.StatusBadRequest, "Current password is incorrect")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Password changed successfully"})
}
