package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xdc_transfer"

// Registry holds every collector exposed on /metrics.
var Registry = prometheus.NewRegistry()

var (
	TransfersDispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfers_dispatched_total",
		Help:      "Transfers handed to the signer.",
	})

	TransfersSettled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfers_settled_total",
		Help:      "Dispatched transfers by outcome (confirmed or error kind).",
	}, []string{"outcome"})

	TransfersRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfers_rejected_total",
		Help:      "Submits stopped before dispatch, by error kind.",
	}, []string{"kind"})

	SettleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transfer_settle_seconds",
		Help:      "Time from dispatch to settlement.",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	ScanSessions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scan_sessions_total",
		Help:      "Scanner sessions by how they ended.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		TransfersDispatched,
		TransfersSettled,
		TransfersRejected,
		SettleDuration,
		ScanSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
