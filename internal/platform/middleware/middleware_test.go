package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	mw := RequestID()
	h := mw(handler)
	err := h(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	mw := RequestID()
	h := mw(handler)
	h(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestLogger_LogsRequestWithTenant(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.New(&out)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("tenant_id", "lab_north")
	c.Set("request_id", "req-123")

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := Logger(logger)
	h := mw(handler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := out.String()
	for _, want := range []string{`"tenant_id":"lab_north"`, `"request_id":"req-123"`, `"path":"/api/v1/reports"`, `"method":"GET"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %s: %s", want, line)
		}
	}
}

func TestLogger_ErrorsLogAtErrorLevel(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.New(&out)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "order already closed")
	}

	mw := Logger(logger)
	h := mw(handler)
	if err := h(c); err == nil {
		t.Fatal("expected handler error to pass through")
	}

	line := out.String()
	if !strings.Contains(line, `"level":"error"`) {
		t.Errorf("expected error level, got: %s", line)
	}
	if !strings.Contains(line, "order already closed") {
		t.Errorf("expected error detail in log, got: %s", line)
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.New(&out)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/ingest", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("tenant_id", "southern_hq")

	handler := func(c echo.Context) error {
		panic("gateway payload out of range")
	}

	mw := Recovery(logger)
	h := mw(handler)
	err := h(c)

	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}

	line := out.String()
	for _, want := range []string{`"tenant_id":"southern_hq"`, `"path":"/api/v1/devices/ingest"`, "gateway payload out of range", "panic recovered"} {
		if !strings.Contains(line, want) {
			t.Errorf("panic log missing %s: %s", want, line)
		}
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.New(&out)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	mw := Recovery(logger)
	h := mw(handler)
	err := h(c)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no log output for clean request, got: %s", out.String())
	}
}
