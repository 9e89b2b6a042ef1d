package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Domain names for the operational databases. Each domain maps to its own
// PostgreSQL database with an independent connection pool.
const (
	DomainUsers         = "users"
	DomainOrders        = "orders"
	DomainClients       = "clients"
	DomainDevices       = "devices"
	DomainGateways      = "gateways"
	DomainHistoUsers    = "histo_users"
	DomainHistoPatients = "histo_patients"
	DomainHistoReports  = "histo_reports"
)

// AllDomains returns every domain database name in a stable order.
func AllDomains() []string {
	return []string{
		DomainUsers,
		DomainOrders,
		DomainClients,
		DomainDevices,
		DomainGateways,
		DomainHistoUsers,
		DomainHistoPatients,
		DomainHistoReports,
	}
}

// Registry holds one connection pool per domain database.
type Registry struct {
	pools map[string]*pgxpool.Pool
}

// NewRegistry opens a pool for every domain using the URL map from config.
// A missing or unreachable database fails the whole registry; pools opened
// before the failure are closed.
func NewRegistry(ctx context.Context, urls map[string]string, maxConns, minConns int32) (*Registry, error) {
	r := &Registry{pools: make(map[string]*pgxpool.Pool, len(urls))}

	for _, domain := range AllDomains() {
		url, ok := urls[domain]
		if !ok || url == "" {
			r.Close()
			return nil, fmt.Errorf("no database URL configured for domain %s", domain)
		}

		pool, err := NewPool(ctx, url, maxConns, minConns)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("open pool for %s: %w", domain, err)
		}
		r.pools[domain] = pool
	}

	return r, nil
}

// NewPool opens a single pgx pool and verifies connectivity.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Pool returns the pool for a domain, or nil if the domain is unknown.
func (r *Registry) Pool(domain string) *pgxpool.Pool {
	return r.pools[domain]
}

// Close releases every pool in the registry.
func (r *Registry) Close() {
	for _, pool := range r.pools {
		if pool != nil {
			pool.Close()
		}
	}
}
