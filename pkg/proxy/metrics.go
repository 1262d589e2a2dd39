package proxy

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the proxy's request counters on a private registry, so two
// proxies in one process (eg. in tests) never collide on registration.
type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devauth_proxy_requests_total",
				Help: "Requests handled by the dev proxy, by route and status code.",
			},
			[]string{"route", "code"},
		),
	}
	m.registry.MustRegister(m.requests)
	return m
}

func (m *metrics) observe(route string, statusCode int) {
	m.requests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
