package patients

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"
)

// -- Mock repositories --

type mockPatientRepo struct {
	patients map[int64]*Patient
	nextID   int64
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[int64]*Patient), nextID: 1}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = time.Now()
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, fmt.Errorf("no rows in result set")
	}
	return p, nil
}

func (m *mockPatientRepo) GetByInvoice(_ context.Context, invoiceNo string) (*Patient, error) {
	for _, p := range m.patients {
		if p.InvoiceNo == invoiceNo {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no rows in result set")
}

func (m *mockPatientRepo) LastInvoiceForYear(_ context.Context, pattern string) (string, error) {
	prefix := strings.TrimSuffix(pattern, "%")
	var ids []int64
	for id, p := range m.patients {
		if strings.HasPrefix(p.InvoiceNo, prefix) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return m.patients[ids[0]].InvoiceNo, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return fmt.Errorf("no rows in result set")
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.patients[id]; !ok {
		return fmt.Errorf("no rows in result set")
	}
	delete(m.patients, id)
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, f ListFilter) ([]*Patient, error) {
	var out []*Patient
	for _, p := range m.patients {
		if f.VerificationStatus != "" && p.VerificationStatus != f.VerificationStatus {
			continue
		}
		if f.InvestigationType != "" && p.InvestigationType != f.InvestigationType {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *mockPatientRepo) ListPending(_ context.Context, limit, offset int) ([]*Patient, error) {
	var out []*Patient
	for _, p := range m.patients {
		if p.VerificationStatus == VerificationPending {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockDoctorRepo struct {
	doctors map[int64]*ReferringDoctor
	nextID  int64
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[int64]*ReferringDoctor), nextID: 1}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *ReferringDoctor) error {
	d.ID = m.nextID
	m.nextID++
	d.CreatedAt = time.Now()
	m.doctors[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id int64) (*ReferringDoctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, fmt.Errorf("no rows in result set")
	}
	return d, nil
}

func (m *mockDoctorRepo) Update(_ context.Context, d *ReferringDoctor) error {
	if _, ok := m.doctors[d.ID]; !ok {
		return fmt.Errorf("no rows in result set")
	}
	m.doctors[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) Deactivate(_ context.Context, id int64) error {
	d, ok := m.doctors[id]
	if !ok {
		return fmt.Errorf("no rows in result set")
	}
	d.IsActive = false
	return nil
}

func (m *mockDoctorRepo) List(_ context.Context, isActive *bool) ([]*ReferringDoctor, error) {
	var out []*ReferringDoctor
	for _, d := range m.doctors {
		if isActive != nil && d.IsActive != *isActive {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type countingPatientMetrics struct {
	registered int
	allocated  int
}

func (c *countingPatientMetrics) PatientRegistered() { c.registered++ }
func (c *countingPatientMetrics) InvoiceAllocated()  { c.allocated++ }

func newTestService() (*Service, *mockPatientRepo, *mockDoctorRepo) {
	patients := newMockPatientRepo()
	doctors := newMockDoctorRepo()
	return NewService(patients, doctors), patients, doctors
}

func registerPatient(t *testing.T, svc *Service, name string) *Patient {
	t.Helper()
	p, err := svc.Register(context.Background(), &Patient{
		PatientName: name,
		Age:         52,
		Sex:         "F",
		ReceiveDate: NewDate(2026, time.March, 4),
	}, 7)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return p
}

// -- Invoice allocation --

func TestRegister_FirstInvoiceOfYear(t *testing.T) {
	svc, _, _ := newTestService()

	p := registerPatient(t, svc, "Alice Rahman")

	want := fmt.Sprintf("INV-%d-0001", time.Now().Year())
	if p.InvoiceNo != want {
		t.Fatalf("invoice = %q, want %q", p.InvoiceNo, want)
	}
}

func TestRegister_InvoiceIncrements(t *testing.T) {
	svc, _, _ := newTestService()

	registerPatient(t, svc, "First")
	registerPatient(t, svc, "Second")
	p := registerPatient(t, svc, "Third")

	want := fmt.Sprintf("INV-%d-0003", time.Now().Year())
	if p.InvoiceNo != want {
		t.Fatalf("invoice = %q, want %q", p.InvoiceNo, want)
	}
}

func TestRegister_InvoiceRestartsWhenSuffixUnparseable(t *testing.T) {
	svc, repo, _ := newTestService()

	year := time.Now().Year()
	repo.Create(context.Background(), &Patient{
		InvoiceNo:   fmt.Sprintf("INV-%d-LEGACY", year),
		PatientName: "Migrated Row",
	})

	p := registerPatient(t, svc, "After Migration")

	want := fmt.Sprintf("INV-%d-0001", year)
	if p.InvoiceNo != want {
		t.Fatalf("invoice = %q, want %q", p.InvoiceNo, want)
	}
}

func TestRegister_InvoiceIgnoresOtherYears(t *testing.T) {
	svc, repo, _ := newTestService()

	repo.Create(context.Background(), &Patient{
		InvoiceNo:   "INV-2019-0042",
		PatientName: "Old Year",
	})

	p := registerPatient(t, svc, "This Year")

	want := fmt.Sprintf("INV-%d-0001", time.Now().Year())
	if p.InvoiceNo != want {
		t.Fatalf("invoice = %q, want %q", p.InvoiceNo, want)
	}
}

func TestRegister_SerialAllocationsStrictlyIncrease(t *testing.T) {
	svc, _, _ := newTestService()

	prev := 0
	for i := 0; i < 12; i++ {
		p := registerPatient(t, svc, fmt.Sprintf("Patient %d", i))
		suffix := p.InvoiceNo[strings.LastIndex(p.InvoiceNo, "-")+1:]
		var n int
		fmt.Sscanf(suffix, "%d", &n)
		if n <= prev {
			t.Fatalf("allocation %d: suffix %d not greater than previous %d", i, n, prev)
		}
		prev = n
	}
}

// -- Registration --

func TestRegister_DefaultsAndOverrides(t *testing.T) {
	svc, _, _ := newTestService()

	p, err := svc.Register(context.Background(), &Patient{
		InvoiceNo:          "INV-9999-9999",
		PatientName:        "Defaulted",
		Age:                3,
		Sex:                "M",
		ReceiveDate:        NewDate(2026, time.January, 15),
		VerificationStatus: VerificationVerified,
	}, 11)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if p.InvoiceNo == "INV-9999-9999" {
		t.Error("caller-supplied invoice_no was not replaced")
	}
	if p.AgeUnit != "years" {
		t.Errorf("age_unit = %q, want years", p.AgeUnit)
	}
	if p.InvestigationType != InvestigationHistopathology {
		t.Errorf("investigation_type = %q, want %q", p.InvestigationType, InvestigationHistopathology)
	}
	if p.VerificationStatus != VerificationPending {
		t.Errorf("verification_status = %q, want pending", p.VerificationStatus)
	}
	if p.CreatedBy != 11 {
		t.Errorf("created_by = %d, want 11", p.CreatedBy)
	}
}

func TestRegister_RequiredFields(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name    string
		patient Patient
	}{
		{"missing name", Patient{Sex: "F", ReceiveDate: NewDate(2026, time.May, 1)}},
		{"missing sex", Patient{PatientName: "X", ReceiveDate: NewDate(2026, time.May, 1)}},
		{"missing receive date", Patient{PatientName: "X", Sex: "F"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, &tc.patient, 1); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestRegister_FeedsMetrics(t *testing.T) {
	svc, _, _ := newTestService()
	m := &countingPatientMetrics{}
	svc.SetMetrics(m)

	registerPatient(t, svc, "Counted")

	if m.registered != 1 || m.allocated != 1 {
		t.Fatalf("metrics = %+v, want one registration and one allocation", m)
	}
}

// -- Verification gate --

func TestVerify_StampsReviewer(t *testing.T) {
	svc, _, _ := newTestService()
	p := registerPatient(t, svc, "To Verify")

	notes := "slides match requisition"
	got, err := svc.Verify(context.Background(), p.ID, 42, &notes)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if got.VerificationStatus != VerificationVerified {
		t.Errorf("status = %q, want verified", got.VerificationStatus)
	}
	if got.VerifiedBy == nil || *got.VerifiedBy != 42 {
		t.Errorf("verified_by = %v, want 42", got.VerifiedBy)
	}
	if got.VerifiedAt == nil {
		t.Error("verified_at not stamped")
	}
	if got.VerificationNotes == nil || *got.VerificationNotes != notes {
		t.Errorf("notes = %v, want %q", got.VerificationNotes, notes)
	}
}

func TestVerify_TwiceFails(t *testing.T) {
	svc, _, _ := newTestService()
	p := registerPatient(t, svc, "Double Verify")

	if _, err := svc.Verify(context.Background(), p.ID, 1, nil); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := svc.Verify(context.Background(), p.ID, 2, nil); err != ErrAlreadyVerified {
		t.Fatalf("second verify err = %v, want ErrAlreadyVerified", err)
	}
}

func TestVerify_AfterRejectionSucceeds(t *testing.T) {
	svc, _, _ := newTestService()
	p := registerPatient(t, svc, "Resubmitted")

	if _, err := svc.Reject(context.Background(), p.ID, 1, "wrong block number"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	got, err := svc.Verify(context.Background(), p.ID, 2, nil)
	if err != nil {
		t.Fatalf("verify after reject: %v", err)
	}
	if got.VerificationStatus != VerificationVerified {
		t.Fatalf("status = %q, want verified", got.VerificationStatus)
	}
}

func TestVerify_UnknownPatient(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Verify(context.Background(), 999, 1, nil); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReject_RequiresNotes(t *testing.T) {
	svc, _, _ := newTestService()
	p := registerPatient(t, svc, "No Reason")

	if _, err := svc.Reject(context.Background(), p.ID, 1, "   "); err == nil {
		t.Fatal("expected error for blank notes")
	}

	got, err := svc.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.VerificationStatus != VerificationPending {
		t.Fatalf("status = %q, want pending after failed reject", got.VerificationStatus)
	}
}

func TestReject_StampsReviewerAndNotes(t *testing.T) {
	svc, _, _ := newTestService()
	p := registerPatient(t, svc, "To Reject")

	got, err := svc.Reject(context.Background(), p.ID, 9, "specimen unlabeled")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.VerificationStatus != VerificationRejected {
		t.Errorf("status = %q, want rejected", got.VerificationStatus)
	}
	if got.VerifiedBy == nil || *got.VerifiedBy != 9 {
		t.Errorf("verified_by = %v, want 9", got.VerifiedBy)
	}
	if got.VerificationNotes == nil || *got.VerificationNotes != "specimen unlabeled" {
		t.Errorf("notes = %v", got.VerificationNotes)
	}
}

// -- CRUD --

func TestUpdate_PartialFields(t *testing.T) {
	svc, _, _ := newTestService()
	p := registerPatient(t, svc, "Before")

	name := "After"
	phone := "01711-000000"
	got, err := svc.Update(context.Background(), p.ID, UpdatePatientRequest{
		PatientName: &name,
		Phone:       &phone,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if got.PatientName != "After" {
		t.Errorf("patient_name = %q", got.PatientName)
	}
	if got.Phone == nil || *got.Phone != phone {
		t.Errorf("phone = %v", got.Phone)
	}
	if got.Age != 52 {
		t.Errorf("age = %d, want untouched 52", got.Age)
	}
	if got.Sex != "F" {
		t.Errorf("sex = %q, want untouched F", got.Sex)
	}
}

func TestDelete_RemovesRow(t *testing.T) {
	svc, repo, _ := newTestService()
	p := registerPatient(t, svc, "Removed")

	if err := svc.Delete(context.Background(), p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := repo.patients[p.ID]; ok {
		t.Fatal("row still present after delete")
	}
	if err := svc.Delete(context.Background(), p.ID); err != ErrNotFound {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestGetByInvoice(t *testing.T) {
	svc, _, _ := newTestService()
	p := registerPatient(t, svc, "By Invoice")

	got, err := svc.GetByInvoice(context.Background(), p.InvoiceNo)
	if err != nil {
		t.Fatalf("get by invoice: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("id = %d, want %d", got.ID, p.ID)
	}

	if _, err := svc.GetByInvoice(context.Background(), "INV-2026-9999"); err != ErrNotFound {
		t.Fatalf("missing invoice err = %v, want ErrNotFound", err)
	}
}

// -- Referring doctors --

func TestDoctor_CreateDefaultsActive(t *testing.T) {
	svc, _, _ := newTestService()

	d, err := svc.CreateDoctor(context.Background(), &ReferringDoctor{Name: "Dr. Karim"})
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	if !d.IsActive {
		t.Fatal("new doctor should be active")
	}

	if _, err := svc.CreateDoctor(context.Background(), &ReferringDoctor{}); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestDoctor_DeactivateKeepsRow(t *testing.T) {
	svc, _, repo := newTestService()

	d, err := svc.CreateDoctor(context.Background(), &ReferringDoctor{Name: "Dr. Sultana"})
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	if err := svc.DeactivateDoctor(context.Background(), d.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	kept, ok := repo.doctors[d.ID]
	if !ok {
		t.Fatal("doctor row deleted, want soft delete")
	}
	if kept.IsActive {
		t.Fatal("doctor still active after deactivate")
	}

	if err := svc.DeactivateDoctor(context.Background(), 999); err != ErrDoctorNotFound {
		t.Fatalf("unknown doctor err = %v, want ErrDoctorNotFound", err)
	}
}

func TestDoctor_ListActiveFilter(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	active, _ := svc.CreateDoctor(ctx, &ReferringDoctor{Name: "Active"})
	retired, _ := svc.CreateDoctor(ctx, &ReferringDoctor{Name: "Retired"})
	svc.DeactivateDoctor(ctx, retired.ID)

	onlyActive := true
	got, err := svc.ListDoctors(ctx, &onlyActive)
	if err != nil {
		t.Fatalf("list doctors: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Fatalf("active list = %d doctors, want just %d", len(got), active.ID)
	}

	all, err := svc.ListDoctors(ctx, nil)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all list = %d doctors, want 2", len(all))
	}
}

func TestDoctor_Update(t *testing.T) {
	svc, _, _ := newTestService()

	d, err := svc.CreateDoctor(context.Background(), &ReferringDoctor{Name: "Dr. Old"})
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}

	name := "Dr. New"
	hospital := "City Medical College"
	got, err := svc.UpdateDoctor(context.Background(), d.ID, UpdateDoctorRequest{
		Name:     &name,
		Hospital: &hospital,
	})
	if err != nil {
		t.Fatalf("update doctor: %v", err)
	}
	if got.Name != "Dr. New" {
		t.Errorf("name = %q", got.Name)
	}
	if got.Hospital == nil || *got.Hospital != hospital {
		t.Errorf("hospital = %v", got.Hospital)
	}

	if _, err := svc.UpdateDoctor(context.Background(), 999, UpdateDoctorRequest{}); err != ErrDoctorNotFound {
		t.Fatalf("unknown doctor err = %v, want ErrDoctorNotFound", err)
	}
}
