package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScoringRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_scoring_requests_total",
			Help: "Total number of calls to the external scoring service",
		},
		[]string{"outcome"},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "loan_scoring_duration_seconds",
			Help:    "Duration of scoring service calls in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_decisions_total",
			Help: "Total number of committed application decisions by final status",
		},
		[]string{"status", "source"},
	)

	RescoreItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_rescore_items_total",
			Help: "Total number of rescore batch items by result",
		},
		[]string{"result"},
	)

	PartnerRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_partner_records_ingested_total",
			Help: "Total number of partner signal records ingested",
		},
		[]string{"partner", "signal"},
	)
)
