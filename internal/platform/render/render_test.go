package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRenderPDF_PostsDocument(t *testing.T) {
	var got ReportDocument
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/render/report" {
			t.Errorf("expected /render/report, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	doc := &ReportDocument{
		Patient: PatientDetails{Name: "Jane Doe", InvoiceNo: "INV-2025-0042"},
		Report: ReportDetails{
			ReportType: "histopathology",
			Diagnosis:  "Benign fibroadenoma",
			Status:     "signed",
		},
		Doctor:           &DoctorDetails{Name: "Dr. Osei", Designation: "MBBS, FCPS (Histopathology)"},
		VerificationCode: "A1B2C3D4E5F60718",
	}

	pdf, err := client.RenderPDF(context.Background(), doc)
	if err != nil {
		t.Fatalf("RenderPDF failed: %v", err)
	}
	if string(pdf) != "%PDF-1.7 fake" {
		t.Errorf("unexpected PDF body: %q", pdf)
	}

	if got.Patient.InvoiceNo != "INV-2025-0042" {
		t.Errorf("expected invoice INV-2025-0042, got %q", got.Patient.InvoiceNo)
	}
	if got.Report.Diagnosis != "Benign fibroadenoma" {
		t.Errorf("expected diagnosis in payload, got %q", got.Report.Diagnosis)
	}
	if got.VerificationCode != "A1B2C3D4E5F60718" {
		t.Errorf("expected verification code in payload, got %q", got.VerificationCode)
	}
	if got.Preview {
		t.Error("expected preview=false for a final render")
	}
}

func TestRenderPDF_Unconfigured(t *testing.T) {
	client := NewClient("")
	if client.Available() {
		t.Error("expected Available to be false with no base URL")
	}

	_, err := client.RenderPDF(context.Background(), &ReportDocument{})
	if err != ErrUnavailable {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestRenderPDF_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "template missing", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithHTTPClient(srv.Client()))

	_, err := client.RenderPDF(context.Background(), &ReportDocument{})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}
