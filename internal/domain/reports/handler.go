package reports

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

// ActivityLog is the slice of the activity service the report handlers use.
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
	doctor := auth.RequireRole(histousers.RoleDoctor)

	g := api.Group("/reports", realm)

	g.GET("/pending", h.ListPending)
	g.GET("/patient/:invoice_no", h.ListByPatient)

	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/versions", h.Versions)

	g.POST("/:id/submit", h.Submit)
	g.POST("/:id/verify", h.Verify, admin)
	g.POST("/:id/reject", h.Reject, admin)
	g.POST("/:id/sign", h.Sign, doctor)
	g.POST("/:id/publish", h.Publish)
	g.POST("/:id/amend", h.Amend)
}

// httpError maps service errors onto the status codes the API promises:
// 404 for an unknown report, 400 for a refused workflow operation.
func httpError(err error) error {
	var wf *WorkflowError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Report not found")
	case errors.As(err, &wf):
		return echo.NewHTTPError(http.StatusBadRequest, wf.Message)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func reportID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	actor := auth.UserIDFromContext(ctx)

	rep, err := h.svc.Create(ctx, req, actor)
	if err != nil {
		return httpError(err)
	}

	h.activity.Record(ctx, activity.FromEcho(c, actor, activity.ActionCreateReport).
		Entity("report", rep.ID).
		With("invoice_no", rep.InvoiceNo))

	return c.JSON(http.StatusCreated, rep)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Status:     c.QueryParam("status"),
		ReportType: c.QueryParam("report_type"),
		InvoiceNo:  c.QueryParam("invoice_no"),
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	}

	items, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Report{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListPending(c echo.Context) error {
	items, err := h.svc.ListPending(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Report{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	items, err := h.svc.ListByInvoice(c.Request().Context(), c.Param("invoice_no"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Report{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	rep, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rep, err := h.svc.Update(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Versions(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	versions, err := h.svc.Versions(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if versions == nil {
		versions = []*Version{}
	}
	return c.JSON(http.StatusOK, versions)
}

// -- Workflow --

func (h *Handler) Submit(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	actor := auth.UserIDFromContext(ctx)

	rep, err := h.svc.Submit(ctx, id, actor)
	if err != nil {
		return httpError(err)
	}

	h.activity.Record(ctx, activity.FromEcho(c, actor, activity.ActionSubmitReport).
		Entity("report", rep.ID).
		With("invoice_no", rep.InvoiceNo))

	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Verify(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	actor := auth.UserIDFromContext(ctx)

	rep, err := h.svc.Verify(ctx, id, actor)
	if err != nil {
		return httpError(err)
	}

	h.activity.Record(ctx, activity.FromEcho(c, actor, activity.ActionVerifyReport).
		Entity("report", rep.ID).
		With("invoice_no", rep.InvoiceNo))

	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	actor := auth.UserIDFromContext(ctx)

	rep, err := h.svc.Reject(ctx, id, actor, req.Reason)
	if err != nil {
		return httpError(err)
	}

	h.activity.Record(ctx, activity.FromEcho(c, actor, activity.ActionRejectReport).
		Entity("report", rep.ID).
		With("invoice_no", rep.InvoiceNo).
		With("reason", req.Reason))

	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Sign(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	var req SignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	actor := auth.UserIDFromContext(ctx)

	rep, err := h.svc.Sign(ctx, id, actor, req.SignaturePassword)
	if err != nil {
		return httpError(err)
	}

	h.activity.Record(ctx, activity.FromEcho(c, actor, activity.ActionSignReport).
		Entity("report", rep.ID).
		With("invoice_no", rep.InvoiceNo))

	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Publish(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	actor := auth.UserIDFromContext(ctx)

	rep, err := h.svc.Publish(ctx, id, actor)
	if err != nil {
		return httpError(err)
	}

	h.activity.Record(ctx, activity.FromEcho(c, actor, activity.ActionPublishReport).
		Entity("report", rep.ID).
		With("invoice_no", rep.InvoiceNo))

	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Amend(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	var req AmendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	actor := auth.UserIDFromContext(ctx)

	rep, err := h.svc.Amend(ctx, id, actor, req.Reason)
	if err != nil {
		return httpError(err)
	}

	h.activity.Record(ctx, activity.FromEcho(c, actor, activity.ActionAmendReport).
		Entity("report", rep.ID).
		With("invoice_no", rep.InvoiceNo).
		With("original_report_id", id).
		With("reason", req.Reason))

	return c.JSON(http.StatusOK, rep)
}
