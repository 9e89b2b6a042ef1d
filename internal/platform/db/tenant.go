package db

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	SessionsKey contextKey = "db_sessions"
)

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// TenantMiddleware resolves the tenant for the request and attaches an empty
// unit of work to the context. Connections are acquired lazily by the
// repositories; everything acquired during the request is released here when
// the handler returns.
func TenantMiddleware(registry *Registry, defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := extractTenantID(c, defaultTenant)

			if !tenantIDPattern.MatchString(tenantID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			sessions := NewSessions(registry, tenantID)
			defer sessions.Release()

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, TenantIDKey, tenantID)
			ctx = context.WithValue(ctx, SessionsKey, sessions)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", tenantID)

			return next(c)
		}
	}
}

func extractTenantID(c echo.Context, defaultTenant string) string {
	// 1. Check JWT claim (set by auth middleware)
	if tid, ok := c.Get("jwt_tenant_id").(string); ok && tid != "" {
		return tid
	}

	// 2. Check X-Tenant-ID header
	if tid := c.Request().Header.Get("X-Tenant-ID"); tid != "" {
		return tid
	}

	// 3. Check query parameter
	if tid := c.QueryParam("tenant_id"); tid != "" {
		return tid
	}

	return defaultTenant
}

// TenantFromContext retrieves the tenant ID from context.
func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// ProvisionTenant creates the tenant's schema in every domain database and
// runs that domain's migrations against it. migrationsRoot is the directory
// containing one subdirectory of SQL files per domain (migrations/users,
// migrations/histo_reports, ...). An empty migrationsRoot creates the
// schemas only.
func ProvisionTenant(ctx context.Context, registry *Registry, tenantID string, migrationsRoot string) error {
	if !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %s", tenantID)
	}

	schema := fmt.Sprintf("tenant_%s", tenantID)

	for _, domain := range AllDomains() {
		pool := registry.Pool(domain)
		if pool == nil {
			return fmt.Errorf("no pool for domain %s", domain)
		}

		if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
			return fmt.Errorf("create schema %s in %s: %w", schema, domain, err)
		}

		if migrationsRoot == "" {
			continue
		}

		migrator := NewMigrator(pool, filepath.Join(migrationsRoot, domain))
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run %s migrations for %s: %w", domain, schema, err)
		}
	}

	return nil
}

// ListTenants returns the tenant identifiers provisioned in the given domain
// database, derived from its tenant_* schemas.
func ListTenants(ctx context.Context, registry *Registry, domain string) ([]string, error) {
	pool := registry.Pool(domain)
	if pool == nil {
		return nil, fmt.Errorf("no pool for domain %s", domain)
	}

	rows, err := pool.Query(ctx,
		`SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE 'tenant_%' ORDER BY schema_name`)
	if err != nil {
		return nil, fmt.Errorf("list tenant schemas: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var schema string
		if err := rows.Scan(&schema); err != nil {
			return nil, fmt.Errorf("scan schema name: %w", err)
		}
		tenants = append(tenants, schema[len("tenant_"):])
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant schemas: %w", err)
	}

	return tenants, nil
}
