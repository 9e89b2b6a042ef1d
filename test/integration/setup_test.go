package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/southerniot/dashboard/internal/domain/patients"
	"github.com/southerniot/dashboard/internal/platform/db"
)

// testDB holds the shared database infrastructure for integration tests: one
// pool per domain database, all served by a single throwaway container.
type testDB struct {
	Registry      *db.Registry
	URLs          map[string]string
	MigrationsDir string
}

// globalDB is the package-level test database, initialized once in TestMain.
var globalDB *testDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupDomainDatabases(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres container: %v\n", err)
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupDomainDatabases(ctx context.Context) (*testDB, func(), error) {
	urls, stopContainer, err := startPostgresContainer(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres container: %w", err)
	}

	registry, err := db.NewRegistry(ctx, urls, 4, 0)
	if err != nil {
		stopContainer()
		return nil, nil, fmt.Errorf("open registry: %w", err)
	}

	return &testDB{
			Registry:      registry,
			URLs:          urls,
			MigrationsDir: findMigrationsDir(),
		}, func() {
			registry.Close()
			stopContainer()
		}, nil
}

// findMigrationsDir locates the migrations directory relative to this test file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	// test/integration -> repo root
	root := filepath.Join(dir, "..", "..")
	return filepath.Join(root, "migrations")
}

// createTenant provisions a tenant schema in every domain database and runs
// that domain's migrations against it.
func createTenant(t *testing.T, ctx context.Context, tenantID string) {
	t.Helper()
	if err := db.ProvisionTenant(ctx, globalDB.Registry, tenantID, globalDB.MigrationsDir); err != nil {
		t.Fatalf("provision tenant %s: %v", tenantID, err)
	}
}

// dropTenant drops the tenant's schema from every domain database.
func dropTenant(t *testing.T, ctx context.Context, tenantID string) {
	t.Helper()
	schema := fmt.Sprintf("tenant_%s", tenantID)
	for _, domain := range db.AllDomains() {
		pool := globalDB.Registry.Pool(domain)
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
			t.Logf("warning: failed to drop schema %s in %s: %v", schema, domain, err)
		}
	}
}

// withSessions runs fn with a tenant unit of work attached to the context,
// the way the tenant middleware does for a request. Repositories resolve
// their connections from it; everything acquired is released afterwards.
func withSessions(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	sessions := db.NewSessions(globalDB.Registry, tenantID)
	defer sessions.Release()
	return fn(db.WithSessions(ctx, sessions))
}

// uniqueTenantID generates a unique tenant ID for test isolation.
func uniqueTenantID(prefix string) string {
	short := strings.ReplaceAll(uuid.New().String()[:8], "-", "")
	return fmt.Sprintf("%s_%s", prefix, short)
}

func strptr(s string) *string { return &s }

// registerTestPatient registers a lab patient through the service, the same
// path the registration endpoint takes, and returns the stored row with its
// allocated invoice number.
func registerTestPatient(t *testing.T, ctx context.Context, tenantID, name string) *patients.Patient {
	t.Helper()
	svc := patients.NewService(patients.NewRepoPG(), patients.NewDoctorRepoPG())

	var result *patients.Patient
	err := withSessions(ctx, tenantID, func(ctx context.Context) error {
		now := time.Now()
		p := &patients.Patient{
			PatientName: name,
			Age:         52,
			Sex:         "male",
			ReceiveDate: patients.NewDate(now.Year(), now.Month(), now.Day()),
		}
		var err error
		result, err = svc.Register(ctx, p, 1)
		return err
	})
	if err != nil {
		t.Fatalf("register test patient: %v", err)
	}
	return result
}
