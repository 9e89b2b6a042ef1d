package patients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/southerniot/dashboard/internal/domain/activity"
	"github.com/southerniot/dashboard/internal/domain/histousers"
	"github.com/southerniot/dashboard/internal/platform/auth"
)

type recordingActivity struct {
	entries []activity.Entry
}

func (r *recordingActivity) Record(_ context.Context, e activity.Entry) {
	r.entries = append(r.entries, e)
}

func newTestHandler() (*Handler, *echo.Echo, *mockPatientRepo, *recordingActivity) {
	patients := newMockPatientRepo()
	doctors := newMockDoctorRepo()
	rec := &recordingActivity{}
	h := NewHandler(NewService(patients, doctors), rec)
	return h, echo.New(), patients, rec
}

func withUser(c echo.Context, id int64, username, role string) {
	ctx := c.Request().Context()
	ctx = context.WithValue(ctx, auth.UserIDKey, id)
	ctx = context.WithValue(ctx, auth.UsernameKey, username)
	ctx = context.WithValue(ctx, auth.UserRoleKey, role)
	ctx = context.WithValue(ctx, auth.RealmKey, auth.RealmHisto)
	c.SetRequest(c.Request().WithContext(ctx))
}

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func seedPatient(t *testing.T, h *Handler, name string) *Patient {
	t.Helper()
	p, err := h.svc.Register(context.Background(), &Patient{
		PatientName: name,
		Age:         40,
		Sex:         "M",
		ReceiveDate: NewDate(2026, time.February, 10),
	}, 3)
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return p
}

func TestCreate_ReturnsAllocatedInvoice(t *testing.T) {
	h, e, _, recAct := newTestHandler()

	c, rec := postJSON(e, "/api/v1/patients",
		`{"patient_name":"Nusrat Jahan","age":29,"sex":"F","receive_date":"2026-02-10"}`)
	withUser(c, 5, "registrar", histousers.RoleDoctor)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var body Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(body.InvoiceNo, "INV-") || !strings.HasSuffix(body.InvoiceNo, "-0001") {
		t.Errorf("invoice_no = %q", body.InvoiceNo)
	}
	if body.VerificationStatus != VerificationPending {
		t.Errorf("verification_status = %q, want pending", body.VerificationStatus)
	}
	if body.CreatedBy != 5 {
		t.Errorf("created_by = %d, want the authenticated user", body.CreatedBy)
	}
	if body.ReceiveDate.Format("2006-01-02") != "2026-02-10" {
		t.Errorf("receive_date = %v", body.ReceiveDate)
	}

	if len(recAct.entries) != 1 || recAct.entries[0].Action != activity.ActionCreatePatient {
		t.Fatalf("expected a create_patient activity entry, got %+v", recAct.entries)
	}
	if recAct.entries[0].Details["invoice_no"] != body.InvoiceNo {
		t.Errorf("activity invoice_no = %v", recAct.entries[0].Details)
	}
}

func TestCreate_MissingFields(t *testing.T) {
	h, e, _, _ := newTestHandler()

	c, _ := postJSON(e, "/api/v1/patients", `{"age":29,"sex":"F"}`)
	withUser(c, 5, "registrar", histousers.RoleDoctor)

	err := h.Create(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	h, e, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/99", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("99")

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	if he.Message != "Patient not found" {
		t.Errorf("message = %v", he.Message)
	}
}

func TestGetByInvoice_Endpoint(t *testing.T) {
	h, e, _, _ := newTestHandler()
	p := seedPatient(t, h, "Lookup Target")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/invoice/"+p.InvoiceNo, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("invoice_no")
	c.SetParamValues(p.InvoiceNo)

	if err := h.GetByInvoice(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ID != p.ID {
		t.Errorf("id = %d, want %d", body.ID, p.ID)
	}
}

func TestList_PlainArray(t *testing.T) {
	h, e, _, _ := newTestHandler()
	seedPatient(t, h, "Rowan")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients?skip=0&limit=10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "[") {
		t.Fatalf("expected a plain JSON array, got %s", rec.Body.String())
	}
}

func TestList_EmptyIsArrayNotNull(t *testing.T) {
	h, e, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected [], got %s", rec.Body.String())
	}
}

func TestVerify_AlreadyVerifiedMessage(t *testing.T) {
	h, e, _, _ := newTestHandler()
	p := seedPatient(t, h, "Verified Twice")

	verify := func() error {
		c, _ := postJSON(e, "/api/v1/patients/"+strconv.FormatInt(p.ID, 10)+"/verify", `{}`)
		withUser(c, 8, "admin", histousers.RoleAdmin)
		c.SetParamNames("id")
		c.SetParamValues(strconv.FormatInt(p.ID, 10))
		return h.Verify(c)
	}

	if err := verify(); err != nil {
		t.Fatalf("first verify: %v", err)
	}

	err := verify()
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if he.Message != "Patient is already verified" {
		t.Errorf("message = %v", he.Message)
	}
}

func TestVerify_RecordsActivity(t *testing.T) {
	h, e, _, recAct := newTestHandler()
	p := seedPatient(t, h, "Audited")

	c, rec := postJSON(e, "/api/v1/patients/"+strconv.FormatInt(p.ID, 10)+"/verify",
		`{"notes":"requisition checked"}`)
	withUser(c, 8, "admin", histousers.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(p.ID, 10))

	if err := h.Verify(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if len(recAct.entries) != 1 || recAct.entries[0].Action != activity.ActionVerifyPatient {
		t.Fatalf("expected a verify_patient entry, got %+v", recAct.entries)
	}
	if recAct.entries[0].UserID != 8 {
		t.Errorf("activity user = %d, want the admin", recAct.entries[0].UserID)
	}
}

func TestReject_RequiresNotes400(t *testing.T) {
	h, e, _, recAct := newTestHandler()
	p := seedPatient(t, h, "Rejected Without Reason")

	c, _ := postJSON(e, "/api/v1/patients/"+strconv.FormatInt(p.ID, 10)+"/reject", `{"notes":""}`)
	withUser(c, 8, "admin", histousers.RoleAdmin)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(p.ID, 10))

	err := h.Reject(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if len(recAct.entries) != 0 {
		t.Errorf("failed reject must not log activity, got %+v", recAct.entries)
	}
}

func TestDelete_Patient(t *testing.T) {
	h, e, repo, _ := newTestHandler()
	p := seedPatient(t, h, "Gone")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/patients/"+strconv.FormatInt(p.ID, 10), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(p.ID, 10))

	if err := h.Delete(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, ok := repo.patients[p.ID]; ok {
		t.Fatal("patient row still present")
	}
}

func TestListDoctors_DefaultsToActiveOnly(t *testing.T) {
	h, e, _, _ := newTestHandler()
	ctx := context.Background()

	h.svc.CreateDoctor(ctx, &ReferringDoctor{Name: "Dr. Active"})
	retired, _ := h.svc.CreateDoctor(ctx, &ReferringDoctor{Name: "Dr. Retired"})
	h.svc.DeactivateDoctor(ctx, retired.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/referring-doctors", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body []ReferringDoctor
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body) != 1 || body[0].Name != "Dr. Active" {
		t.Fatalf("default listing = %+v, want only the active doctor", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/patients/referring-doctors?active_only=false", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)

	if err := h.ListDoctors(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("active_only=false listing = %d doctors, want 2", len(body))
	}
}

func TestDeleteDoctor_NotFoundMessage(t *testing.T) {
	h, e, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/patients/referring-doctors/42", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("42")

	err := h.DeleteDoctor(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
	if he.Message != "Referring doctor not found" {
		t.Errorf("message = %v", he.Message)
	}
}

func TestRegisterRoutes_Table(t *testing.T) {
	h, e, _, _ := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1"))

	want := map[string]bool{
		"GET /api/v1/patients":                          false,
		"POST /api/v1/patients":                         false,
		"GET /api/v1/patients/pending-verification":     false,
		"GET /api/v1/patients/invoice/:invoice_no":      false,
		"GET /api/v1/patients/:id":                      false,
		"PUT /api/v1/patients/:id":                      false,
		"DELETE /api/v1/patients/:id":                   false,
		"POST /api/v1/patients/:id/verify":              false,
		"POST /api/v1/patients/:id/reject":              false,
		"GET /api/v1/patients/referring-doctors":        false,
		"POST /api/v1/patients/referring-doctors":       false,
		"PUT /api/v1/patients/referring-doctors/:id":    false,
		"DELETE /api/v1/patients/referring-doctors/:id": false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, seen := range want {
		if !seen {
			t.Errorf("route not registered: %s", route)
		}
	}
}
