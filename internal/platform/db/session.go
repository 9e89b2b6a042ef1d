package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoSession is returned by repositories when a query runs outside the
// tenant middleware (or a CLI context that attached sessions itself).
var ErrNoSession = errors.New("no tenant session in context")

// Sessions is the per-request unit of work across the domain databases. A
// connection to a domain is acquired lazily on first use, pinned to the
// tenant's schema, and reused for every query the request issues against
// that domain. Release returns all held connections to their pools.
//
// A request that only touches the reports database therefore holds exactly
// one connection; a cross-database operation such as document assembly holds
// one per database it reads.
type Sessions struct {
	registry *Registry
	tenantID string

	mu    sync.Mutex
	conns map[string]*pgxpool.Conn
}

// NewSessions creates an empty unit of work for one tenant.
func NewSessions(registry *Registry, tenantID string) *Sessions {
	return &Sessions{
		registry: registry,
		tenantID: tenantID,
		conns:    make(map[string]*pgxpool.Conn),
	}
}

// TenantID returns the tenant this unit of work is scoped to.
func (s *Sessions) TenantID() string {
	return s.tenantID
}

// Conn returns the session connection for a domain, acquiring and pinning it
// on first use.
func (s *Sessions) Conn(ctx context.Context, domain string) (*pgxpool.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.conns[domain]; ok {
		return conn, nil
	}

	pool := s.registry.Pool(domain)
	if pool == nil {
		return nil, fmt.Errorf("unknown domain database: %s", domain)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire %s connection: %w", domain, err)
	}

	schema := fmt.Sprintf("tenant_%s", s.tenantID)
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", schema)); err != nil {
		conn.Release()
		return nil, fmt.Errorf("set search_path for %s: %w", domain, err)
	}

	s.conns[domain] = conn
	return conn, nil
}

// Release returns every held connection to its pool. The search_path is
// reset so a pooled connection never leaks one tenant's schema into another
// tenant's request.
func (s *Sessions) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for domain, conn := range s.conns {
		_, _ = conn.Exec(context.Background(), "SET search_path TO public")
		conn.Release()
		delete(s.conns, domain)
	}
}

// WithSessions attaches a unit of work to the context. The tenant middleware
// does this for every request; CLI commands use it directly.
func WithSessions(ctx context.Context, s *Sessions) context.Context {
	return context.WithValue(ctx, SessionsKey, s)
}

// SessionsFromContext retrieves the request's unit of work, or nil when the
// request is not running under the tenant middleware.
func SessionsFromContext(ctx context.Context) *Sessions {
	s, _ := ctx.Value(SessionsKey).(*Sessions)
	return s
}
