package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/southerniot/dashboard/internal/domain/patients"
	"github.com/southerniot/dashboard/internal/domain/reports"
)

func TestMultiTenantIsolation(t *testing.T) {
	ctx := context.Background()
	tenantA := uniqueTenantID("tenantA")
	tenantB := uniqueTenantID("tenantB")

	createTenant(t, ctx, tenantA)
	defer dropTenant(t, ctx, tenantA)
	createTenant(t, ctx, tenantB)
	defer dropTenant(t, ctx, tenantB)

	svc := patients.NewService(patients.NewRepoPG(), patients.NewDoctorRepoPG())

	t.Run("PatientIsolation", func(t *testing.T) {
		pA1 := registerTestPatient(t, ctx, tenantA, "Alice Tenant A")
		registerTestPatient(t, ctx, tenantA, "Bob Tenant A")
		registerTestPatient(t, ctx, tenantB, "Charlie Tenant B")

		var totalA, totalB int
		err := withSessions(ctx, tenantA, func(ctx context.Context) error {
			all, err := svc.List(ctx, patients.ListFilter{Limit: 100})
			totalA = len(all)
			return err
		})
		if err != nil {
			t.Fatalf("list patients in tenant A: %v", err)
		}
		if totalA != 2 {
			t.Errorf("expected 2 patients in tenant A, got %d", totalA)
		}

		err = withSessions(ctx, tenantB, func(ctx context.Context) error {
			all, err := svc.List(ctx, patients.ListFilter{Limit: 100})
			totalB = len(all)
			return err
		})
		if err != nil {
			t.Fatalf("list patients in tenant B: %v", err)
		}
		if totalB != 1 {
			t.Errorf("expected 1 patient in tenant B, got %d", totalB)
		}

		// A row id from tenant A means nothing inside tenant B.
		err = withSessions(ctx, tenantB, func(ctx context.Context) error {
			if got, err := svc.Get(ctx, pA1.ID); err == nil && got.PatientName == pA1.PatientName {
				t.Errorf("tenant B resolved tenant A's patient: %+v", got)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("cross-tenant lookup: %v", err)
		}
	})

	t.Run("InvoiceSequencesAreIndependent", func(t *testing.T) {
		// Both tenants already hold INV-yyyy-000N rows from the subtest
		// above; each sequence continues on its own.
		pA := registerTestPatient(t, ctx, tenantA, "Third A")
		pB := registerTestPatient(t, ctx, tenantB, "Second B")

		year := time.Now().Year()
		if want := fmt.Sprintf("INV-%d-0003", year); pA.InvoiceNo != want {
			t.Errorf("tenant A: expected %s, got %s", want, pA.InvoiceNo)
		}
		if want := fmt.Sprintf("INV-%d-0002", year); pB.InvoiceNo != want {
			t.Errorf("tenant B: expected %s, got %s", want, pB.InvoiceNo)
		}
	})

	t.Run("ReportIsolation", func(t *testing.T) {
		repSvc := reports.NewService(reports.NewRepoPG())

		patientA := registerTestPatient(t, ctx, tenantA, "Report Owner A")
		err := withSessions(ctx, tenantA, func(ctx context.Context) error {
			_, err := repSvc.Create(ctx, reports.CreateRequest{
				PatientID: patientA.ID,
				InvoiceNo: patientA.InvoiceNo,
			}, 1)
			return err
		})
		if err != nil {
			t.Fatalf("create report in tenant A: %v", err)
		}

		// The same invoice number is free in tenant B.
		err = withSessions(ctx, tenantB, func(ctx context.Context) error {
			found, err := repSvc.ListByInvoice(ctx, patientA.InvoiceNo)
			if err != nil {
				return err
			}
			if len(found) != 0 {
				t.Errorf("tenant B sees %d of tenant A's reports", len(found))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("report isolation: %v", err)
		}
	})
}
