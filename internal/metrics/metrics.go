// Package metrics регистрирует метрики Prometheus сервиса пресейла.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics набор метрик сервиса с собственным реестром.
type Metrics struct {
	Registry *prometheus.Registry

	Purchases         *prometheus.CounterVec
	ResolverFallbacks *prometheus.CounterVec
	BusPublished      *prometheus.CounterVec
	ActiveSurfaces    prometheus.Gauge
}

// New создаёт и регистрирует метрики.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presale_purchases_total",
			Help: "Purchase attempts by final outcome.",
		}, []string{"outcome"}),
		ResolverFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presale_resolver_fallbacks_total",
			Help: "Times the resolver fell back to the default event, by reason.",
		}, []string{"reason"}),
		BusPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "presale_bus_published_total",
			Help: "Events published on the settings change bus, by topic.",
		}, []string{"topic"}),
		ActiveSurfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "presale_active_surfaces",
			Help: "Currently mounted presale surfaces.",
		}),
	}
	reg.MustRegister(
		m.Purchases,
		m.ResolverFallbacks,
		m.BusPublished,
		m.ActiveSurfaces,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// PurchaseOutcome учитывает итог попытки покупки.
func (m *Metrics) PurchaseOutcome(outcome string) {
	m.Purchases.WithLabelValues(outcome).Inc()
}

// ResolverFallback учитывает откат резолвера к событию по умолчанию.
func (m *Metrics) ResolverFallback(reason string) {
	m.ResolverFallbacks.WithLabelValues(reason).Inc()
}

// Published учитывает публикацию в шину.
func (m *Metrics) Published(topic string) {
	m.BusPublished.WithLabelValues(topic).Inc()
}

// SurfaceMounted увеличивает число активных поверхностей.
func (m *Metrics) SurfaceMounted() { m.ActiveSurfaces.Inc() }

// SurfaceClosed уменьшает число активных поверхностей.
func (m *Metrics) SurfaceClosed() { m.ActiveSurfaces.Dec() }
