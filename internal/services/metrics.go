package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	moderationActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_actions_total",
			Help: "Moderation cascades committed, by action",
		},
		[]string{"action"},
	)

	moderationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_failures_total",
			Help: "Moderation cascades that were rejected or failed, by action and reason",
		},
		[]string{"action", "reason"},
	)

	autoBanSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moderation_sweep_duration_seconds",
			Help:    "Time spent running the auto-ban sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	reportsFiledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_reports_filed_total",
			Help: "Reports filed by users, by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(moderationActionsTotal, moderationFailuresTotal, autoBanSweepDuration, reportsFiledTotal)
}
