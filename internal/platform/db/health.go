package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents connection pool statistics for one domain database.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// HealthHandler returns a handler reporting the health of every domain
// database. The endpoint is unhealthy if any database fails to answer a ping
// within the timeout.
func HealthHandler(registry *Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		databases := make(map[string]interface{}, len(AllDomains()))
		healthy := true

		for _, domain := range AllDomains() {
			pool := registry.Pool(domain)
			if pool == nil {
				databases[domain] = map[string]interface{}{"status": "unconfigured"}
				healthy = false
				continue
			}

			stats := GetPoolStats(pool)
			if err := pool.Ping(ctx); err != nil {
				stats.Healthy = false
				healthy = false
				databases[domain] = map[string]interface{}{
					"status": "unhealthy",
					"error":  err.Error(),
					"pool":   stats,
				}
				continue
			}

			databases[domain] = map[string]interface{}{
				"status": "healthy",
				"pool":   stats,
			}
		}

		status := "healthy"
		code := http.StatusOK
		if !healthy {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		return c.JSON(code, map[string]interface{}{
			"status":    status,
			"databases": databases,
		})
	}
}
