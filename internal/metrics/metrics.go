package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ForecastAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensemblecast_openmeteo_api_calls_total",
			Help: "Total Open-Meteo API calls by model, kind, and outcome",
		},
		[]string{"model", "kind", "status"},
	)

	ForecastAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ensemblecast_openmeteo_api_latency_seconds",
			Help:    "Open-Meteo API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model", "kind"},
	)

	GeocodeCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensemblecast_geocode_calls_total",
			Help: "Total Nominatim geocoding calls by outcome",
		},
		[]string{"status"},
	)

	AgentToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensemblecast_agent_tool_calls_total",
			Help: "Total agent tool invocations by tool and outcome",
		},
		[]string{"tool", "status"},
	)

	DatasetsCached = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ensemblecast_datasets_cached_total",
			Help: "Forecast datasets written to the local cache",
		},
		[]string{"kind"},
	)
)
