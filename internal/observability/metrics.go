package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crew_traccar_polls_total",
		Help: "Traccar fetches issued, by resource",
	}, []string{"resource"})
	PollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crew_traccar_poll_errors_total",
		Help: "Failed Traccar fetches, by resource and kind",
	}, []string{"resource", "kind"})
	PollLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crew_traccar_poll_latency_seconds",
		Help:    "Latency of Traccar fetches",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource"})
	StaffMembers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crew_staff_members",
		Help: "Staff members in the latest snapshot",
	})
	StaffTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crew_staff_tracked",
		Help: "Staff members with coordinates in the latest snapshot",
	})
	LinkPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crew_link_publish_errors_total",
		Help: "Snapshot publishes that failed",
	})
	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crew_store_errors_total",
		Help: "Connection store failures, by operation",
	}, []string{"op"})
)

func ObservePollLatency(resource string, start time.Time) {
	PollLatency.WithLabelValues(resource).Observe(time.Since(start).Seconds())
}

func StartMetricsServer(port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
	return http.ListenAndServe(":"+port, mux)
}
