// Package exporters serves the pipeline metrics over HTTP and SSE.
package exporters

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/vop2ctl/internal/logging"
	"github.com/smazurov/vop2ctl/internal/version"
)

var registerBuildInfo sync.Once

// HTTPHandler serves the default registry for GET /metrics, with a
// vop2ctl_build_info gauge added on first use. Gathering errors are
// logged and the remaining metrics still served.
func HTTPHandler() http.Handler {
	registerBuildInfo.Do(func() {
		info := version.Get()
		prometheus.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vop2ctl",
			Name:      "build_info",
			Help:      "Build metadata; the value is always 1",
			ConstLabels: prometheus.Labels{
				"version":    info.Version,
				"commit":     info.GitCommit,
				"go_version": info.GoVersion,
			},
		}))
	})

	handler := promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog:      errorLog{},
		ErrorHandling: promhttp.ContinueOnError,
	})
	return promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer, handler)
}

type errorLog struct{}

func (errorLog) Println(v ...any) {
	logging.GetLogger("metrics").Warn("Metrics gathering failed", "error", fmt.Sprint(v...))
}
