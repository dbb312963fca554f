package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scans_total", Help: "Count of symbol evaluations run"},
		[]string{"symbol"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals emitted"},
		[]string{"symbol", "side"},
	)
	SuppressionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "suppressions_total", Help: "Evaluations suppressed, by gate"},
		[]string{"symbol", "gate"},
	)
)

func init() {
	prometheus.MustRegister(ScansTotal, SignalsTotal, SuppressionsTotal)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
