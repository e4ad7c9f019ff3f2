// Package metrics defines Prometheus collectors for the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PastesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unbin_pastes_created_total",
		Help: "no. of pastes created",
	})
	PastesUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unbin_pastes_updated_total",
		Help: "no. of pastes updated",
	})
	PastesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unbin_pastes_deleted_total",
		Help: "no. of delete requests served",
	})
	Unauthorized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unbin_unauthorized_total",
		Help: "no. of requests rejected because of a missing or wrong API key",
	})
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unbin_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
