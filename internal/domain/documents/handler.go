package documents

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/southerniot/dashboard/internal/platform/auth"
	"github.com/southerniot/dashboard/internal/platform/render"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/documents", auth.RequireRealm(auth.RealmHisto))
	g.GET("/reports/:id", h.Download)
	g.GET("/reports/:id/preview", h.Preview)
}

func documentError(err error) error {
	switch {
	case errors.Is(err, ErrReportNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Report not found")
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case errors.Is(err, ErrNotFinal):
		return echo.NewHTTPError(http.StatusBadRequest, "PDF can only be generated for signed or published reports")
	case errors.Is(err, render.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "PDF rendering service is not configured")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "PDF generation failed: "+err.Error())
	}
}

// Download serves the final document as an attachment.
func (h *Handler) Download(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	pdf, filename, err := h.svc.FinalPDF(c.Request().Context(), id)
	if err != nil {
		return documentError(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// Preview serves a watermarked copy inline for on-screen review.
func (h *Handler) Preview(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	pdf, err := h.svc.Preview(c.Request().Context(), id)
	if err != nil {
		return documentError(err)
	}
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}
