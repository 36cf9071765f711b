package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncRecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmsync_records_fetched_total",
			Help: "Records fetched from the upstream CRM API",
		},
		[]string{"entity"},
	)

	syncRecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmsync_records_written_total",
			Help: "Records written to the database, by action",
		},
		[]string{"entity", "action"},
	)

	syncTenantsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmsync_tenants_skipped_total",
			Help: "Tenants skipped during a sync run due to tenant-scoped failures",
		},
		[]string{"entity"},
	)

	syncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crmsync_run_duration_seconds",
			Help:    "Duration of sync runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity"},
	)

	tokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmsync_token_refreshes_total",
			Help: "Access token refreshes against the CRM OAuth endpoint",
		},
		[]string{"status"},
	)

	contactsAggregated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crmsync_contacts_aggregated_total",
			Help: "Contacts whose opportunity totals were recomputed",
		},
	)
)
