package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var infoOnce sync.Once

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber and publishes
// an info gauge labelled with the service name and environment.
func MetricsHandler(service, environment string) fiber.Handler {
	RegisterMetrics()
	infoOnce.Do(func() {
		info := prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sae_lti_info",
			Help:        "Static information about the running service.",
			ConstLabels: prometheus.Labels{"service": service, "environment": environment},
		})
		info.Set(1)
		prometheus.MustRegister(info)
	})

	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}
