package patients

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/southerniot/dashboard/internal/domain/activity"
	"github.com/southerniot/dashboard/internal/domain/histousers"
	"github.com/southerniot/dashboard/internal/platform/auth"
	"github.com/southerniot/dashboard/pkg/pagination"
)

// ActivityLog is the slice of the activity service the patient handlers use.
type ActivityLog interface {
	Record(ctx context.Context, e activity.Entry)
}

type Handler struct {
	svc      *Service
	activity ActivityLog
}

func NewHandler(svc *Service, activityLog ActivityLog) *Handler {
	return &Handler{svc: svc, activity: activityLog}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	realm := auth.RequireRealm(auth.RealmHisto)
	admin := auth.RequireRole(histousers.RoleAdmin)

	g := api.Group("/patients", realm)

	g.GET("/pending-verification", h.ListPending)
	g.GET("/invoice/:invoice_no", h.GetByInvoice)

	g.GET("/referring-doctors", h.ListDoctors)
	g.POST("/referring-doctors", h.CreateDoctor)
	g.PUT("/referring-doctors/:id", h.UpdateDoctor)
	g.DELETE("/referring-doctors/:id", h.DeleteDoctor)

	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/verify", h.Verify, admin)
	g.POST("/:id/reject", h.Reject, admin)
}

func (h *Handler) Create(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	actor := auth.UserIDFromContext(ctx)

	created, err := h.svc.Register(ctx, &p, actor)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.activity.Record(ctx, activity.FromEcho(c, actor, activity.ActionCreatePatient).
		Entity("patient", created.ID).
		With("invoice_no", created.InvoiceNo))

	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		VerificationStatus: c.QueryParam("verification_status"),
		InvestigationType:  c.QueryParam("investigation_type"),
		Search:             c.QueryParam("search"),
		Limit:              pg.Limit,
		Offset:             pg.Offset,
	}

	items, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListPending(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, err := h.svc.ListPending(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetByInvoice(c echo.Context) error {
	p, err := h.svc.GetByInvoice(c.Request().Context(), c.Param("invoice_no"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req UpdatePatientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := h.svc.Update(c.Request().Context(), id, req)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Verify(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	actor := auth.UserIDFromContext(ctx)

	p, err := h.svc.Verify(ctx, id, actor, req.Notes)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case errors.Is(err, ErrAlreadyVerified):
		return echo.NewHTTPError(http.StatusBadRequest, "Patient is already verified")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.activity.Record(ctx, activity.FromEcho(c, actor, activity.ActionVerifyPatient).
		Entity("patient", p.ID).
		With("invoice_no", p.InvoiceNo))

	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	actor := auth.UserIDFromContext(ctx)

	p, err := h.svc.Reject(ctx, id, actor, req.Notes)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.activity.Record(ctx, activity.FromEcho(c, actor, activity.ActionRejectPatient).
		Entity("patient", p.ID).
		With("invoice_no", p.InvoiceNo).
		With("notes", req.Notes))

	return c.JSON(http.StatusOK, p)
}

// -- Referring doctors --

func (h *Handler) CreateDoctor(c echo.Context) error {
	var d ReferringDoctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	created, err := h.svc.CreateDoctor(c.Request().Context(), &d)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

// ListDoctors returns active doctors by default; ?active_only=false lists
// the deactivated ones too.
func (h *Handler) ListDoctors(c echo.Context) error {
	activeOnly := true
	if v := c.QueryParam("active_only"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid active_only")
		}
		activeOnly = parsed
	}

	var isActive *bool
	if activeOnly {
		isActive = &activeOnly
	}

	items, err := h.svc.ListDoctors(c.Request().Context(), isActive)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*ReferringDoctor{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req UpdateDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	d, err := h.svc.UpdateDoctor(c.Request().Context(), id, req)
	switch {
	case errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Referring doctor not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateDoctor(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Referring doctor not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
