package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/southerniot/dashboard/internal/platform/db"
)

// PoolStatsCollector exports pgx pool statistics for every domain database.
// Stats are read at scrape time, so the gauges are always current without a
// background refresher.
type PoolStatsCollector struct {
	registry *db.Registry

	totalConns    *prometheus.Desc
	idleConns     *prometheus.Desc
	acquiredConns *prometheus.Desc
	maxConns      *prometheus.Desc
}

func NewPoolStatsCollector(serviceName string, registry *db.Registry) *PoolStatsCollector {
	fqName := func(name string) string {
		return prometheus.BuildFQName(serviceName, "db", name)
	}
	return &PoolStatsCollector{
		registry: registry,
		totalConns: prometheus.NewDesc(fqName("pool_total_conns"),
			"Total connections in the pool.", []string{"database"}, nil),
		idleConns: prometheus.NewDesc(fqName("pool_idle_conns"),
			"Idle connections in the pool.", []string{"database"}, nil),
		acquiredConns: prometheus.NewDesc(fqName("pool_acquired_conns"),
			"Connections currently checked out of the pool.", []string{"database"}, nil),
		maxConns: prometheus.NewDesc(fqName("pool_max_conns"),
			"Maximum pool size.", []string{"database"}, nil),
	}
}

func (p *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.totalConns
	ch <- p.idleConns
	ch <- p.acquiredConns
	ch <- p.maxConns
}

func (p *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, domain := range db.AllDomains() {
		pool := p.registry.Pool(domain)
		if pool == nil {
			continue
		}
		stat := pool.Stat()
		ch <- prometheus.MustNewConstMetric(p.totalConns, prometheus.GaugeValue, float64(stat.TotalConns()), domain)
		ch <- prometheus.MustNewConstMetric(p.idleConns, prometheus.GaugeValue, float64(stat.IdleConns()), domain)
		ch <- prometheus.MustNewConstMetric(p.acquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()), domain)
		ch <- prometheus.MustNewConstMetric(p.maxConns, prometheus.GaugeValue, float64(stat.MaxConns()), domain)
	}
}
