package server

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	LabelRoute   = "route"
	LabelSuccess = "success"
	LabelResult  = "result"
)

var (
	requestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "jsondelta",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time (in seconds) spent serving HTTP requests.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{LabelRoute, LabelSuccess})

	cacheLookups = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "jsondelta",
		Subsystem: "diff_cache",
		Name:      "lookups_total",
		Help:      "Diff cache lookups, by hit or miss.",
	}, []string{LabelResult})

	documentDepth = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "jsondelta",
		Subsystem: "diff",
		Name:      "change_depth",
		Help:      "Deepest level at which a computed diff found a change.",
		Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
	}, []string{})
)
