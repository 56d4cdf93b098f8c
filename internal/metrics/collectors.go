package metrics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"tiergate/pkg/logger"
)

// StoreCollector reports gauges read from the backing stores on every scrape.
// Either store may be nil; its metrics are then skipped.
type StoreCollector struct {
	log        *logger.Logger
	postgres   *sqlx.DB
	clickhouse driver.Conn

	sessionsByPlan *prometheus.Desc
	profilesByPlan *prometheus.Desc
	toolCalls24h   *prometheus.Desc
}

// NewStoreCollector creates a collector over the configured stores
func NewStoreCollector(log *logger.Logger, postgres *sqlx.DB, clickhouse driver.Conn) *StoreCollector {
	return &StoreCollector{
		log:        log.With("component", "store_collector"),
		postgres:   postgres,
		clickhouse: clickhouse,

		sessionsByPlan: prometheus.NewDesc(
			"tiergate_sessions",
			"Persisted agent sessions by raw plan value",
			[]string{"plan"}, nil,
		),
		profilesByPlan: prometheus.NewDesc(
			"tiergate_profiles",
			"User profiles by plan",
			[]string{"plan"}, nil,
		),
		toolCalls24h: prometheus.NewDesc(
			"tiergate_tool_calls_24h",
			"Tool calls recorded in the last 24h",
			[]string{"tool"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessionsByPlan
	ch <- c.profilesByPlan
	ch <- c.toolCalls24h
}

// Collect implements prometheus.Collector
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.postgres != nil {
		c.collectGrouped(ctx, ch, c.sessionsByPlan,
			`SELECT COALESCE(state->>'plan', '1') AS label, COUNT(*) AS count FROM adk_sessions GROUP BY 1`)
		c.collectGrouped(ctx, ch, c.profilesByPlan,
			`SELECT plan::text AS label, COUNT(*) AS count FROM user_profiles GROUP BY 1`)
	}

	if c.clickhouse != nil {
		c.collectToolCalls(ctx, ch)
	}
}

func (c *StoreCollector) collectGrouped(ctx context.Context, ch chan<- prometheus.Metric, desc *prometheus.Desc, query string) {
	var rows []struct {
		Label string `db:"label"`
		Count int64  `db:"count"`
	}
	if err := c.postgres.SelectContext(ctx, &rows, query); err != nil {
		c.log.Warnw("Failed to collect store metric", "metric", desc.String(), "error", err)
		return
	}

	for _, row := range rows {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(row.Count), row.Label)
	}
}

func (c *StoreCollector) collectToolCalls(ctx context.Context, ch chan<- prometheus.Metric) {
	rows, err := c.clickhouse.Query(ctx,
		`SELECT tool_name, count() FROM tool_usage WHERE timestamp > now() - INTERVAL 1 DAY GROUP BY tool_name`)
	if err != nil {
		c.log.Warnw("Failed to collect tool usage metric", "error", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name  string
			count uint64
		)
		if err := rows.Scan(&name, &count); err != nil {
			c.log.Warnw("Failed to scan tool usage row", "error", err)
			return
		}
		ch <- prometheus.MustNewConstMetric(c.toolCalls24h, prometheus.GaugeValue, float64(count), name)
	}
}

// RegisterStoreCollector registers the collector with the default registry
func RegisterStoreCollector(collector *StoreCollector) {
	prometheus.MustRegister(collector)
}
