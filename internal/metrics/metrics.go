package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Analyses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phish_filter_analyses_total",
		Help: "Total number of analysed emails",
	}, []string{"verdict", "source"})

	HeuristicScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "phish_filter_heuristic_score",
		Help:    "Distribution of raw heuristic scores",
		Buckets: prometheus.LinearBuckets(0, 10, 8),
	})

	FinalScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "phish_filter_final_score",
		Help:    "Distribution of combined scores",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	RemoteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phish_filter_remote_failures_total",
		Help: "Remote model calls that failed or timed out",
	}, []string{"provider"})

	RemoteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "phish_filter_remote_duration_seconds",
		Help:    "Time taken by remote model calls",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"provider"})

	Reports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phish_filter_reports_total",
		Help: "Phishing reports by outcome",
	}, []string{"status"})

	APIDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "phish_filter_api_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
	}, []string{"path", "method", "status"})

	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phish_filter_cache_operations_total",
		Help: "Cache lookups and writes",
	}, []string{"operation", "result"})
)
