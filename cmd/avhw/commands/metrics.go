// metrics.go: Prometheus metrics of the remix pipeline.

package commands

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricPacketsRead = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "avhw_packets_read_total",
		Help: "The amount of packets read from the input.",
	})
	metricFramesRemixed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "avhw_frames_remixed_total",
		Help: "The amount of audio frames remixed.",
	})
	metricBytesEncoded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "avhw_bytes_encoded_total",
		Help: "The amount of bytes produced by the re-encoder.",
	})
)

func init() {
	prometheus.MustRegister(metricPacketsRead, metricFramesRemixed, metricBytesEncoded)
}

func registerMetricsHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
