// Package metrics counts what cdnkeeper did to the object store and the
// CDN. Batch runs push the counters to a Prometheus pushgateway on exit.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics defines the counters emitted by the asset lifecycle components.
type Metrics interface {
	IncRetier(target, outcome string)
	IncSigned(mode string)
	IncInvalidation(status string)
	IncUpload(status string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncRetier(string, string) {}
func (Noop) IncSigned(string)         {}
func (Noop) IncInvalidation(string)   {}
func (Noop) IncUpload(string)         {}

// Prom implements Metrics backed by Prometheus counters registered on an
// explicit registry.
type Prom struct {
	registry      *prometheus.Registry
	retier        *prometheus.CounterVec
	signed        *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	uploads       *prometheus.CounterVec
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		registry: prometheus.NewRegistry(),
		retier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retier_total",
			Help:      "Storage class changes by target class and outcome",
		}, []string{"target", "outcome"}),
		signed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signed_urls_total",
			Help:      "Signed CloudFront URLs by mode",
		}, []string{"mode"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "CloudFront invalidations by status",
		}, []string{"status"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Static asset uploads by status",
		}, []string{"status"}),
	}
	p.registry.MustRegister(p.retier, p.signed, p.invalidations, p.uploads)
	return p
}

func (p *Prom) IncRetier(target, outcome string) {
	p.retier.WithLabelValues(target, outcome).Inc()
}

func (p *Prom) IncSigned(mode string) {
	p.signed.WithLabelValues(mode).Inc()
}

func (p *Prom) IncInvalidation(status string) {
	p.invalidations.WithLabelValues(status).Inc()
}

func (p *Prom) IncUpload(status string) {
	p.uploads.WithLabelValues(status).Inc()
}

// Gatherer exposes the registry backing p.
func (p *Prom) Gatherer() prometheus.Gatherer {
	return p.registry
}

// Push sends the current counters to the pushgateway at url under job.
func (p *Prom) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(p.registry).PushContext(ctx)
}
