/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics records submission, endorsement, commit and retry metrics
// and exposes them, together with a health check, on an operations endpoint.
package metrics

import (
	"strings"

	kitmetrics "github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/config"
)

var logger = logging.NewLogger("delphi/metrics")

const (
	// PrometheusProvider is the provider name that enables metrics
	PrometheusProvider = "prometheus"
	// DisabledProvider discards every observation
	DisabledProvider = "disabled"

	namespace = "delphi"
)

// CounterOpts describes a counter
type CounterOpts struct {
	Namespace  string
	Subsystem  string
	Name       string
	Help       string
	LabelNames []string
}

// HistogramOpts describes a histogram
type HistogramOpts struct {
	Namespace  string
	Subsystem  string
	Name       string
	Help       string
	Buckets    []float64
	LabelNames []string
}

// Provider creates the metric instruments
type Provider interface {
	NewCounter(o CounterOpts) kitmetrics.Counter
	NewHistogram(o HistogramOpts) kitmetrics.Histogram
}

// NewProvider returns the provider named by cfg. An empty provider name
// disables metrics. The returned Gatherer is nil when metrics are disabled.
func NewProvider(cfg config.MetricsConfig) (Provider, prom.Gatherer, error) {
	switch strings.ToLower(cfg.Provider) {
	case PrometheusProvider:
		registry := prom.NewRegistry()
		return &Prometheus{Registerer: registry}, registry, nil
	case "", DisabledProvider:
		logger.Debug("metrics disabled")
		return &Disabled{}, nil, nil
	default:
		return nil, nil, errors.Errorf("unknown metrics provider [%s]", cfg.Provider)
	}
}

// Prometheus provides go-kit instruments backed by prometheus vectors
type Prometheus struct {
	Registerer prom.Registerer
}

// NewCounter registers a counter vector
func (p *Prometheus) NewCounter(o CounterOpts) kitmetrics.Counter {
	cv := prom.NewCounterVec(prom.CounterOpts{
		Namespace: nonEmpty(o.Namespace, namespace),
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
	}, o.LabelNames)
	p.register(cv)
	return kitprom.NewCounter(cv)
}

// NewHistogram registers a histogram vector
func (p *Prometheus) NewHistogram(o HistogramOpts) kitmetrics.Histogram {
	hv := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: nonEmpty(o.Namespace, namespace),
		Subsystem: o.Subsystem,
		Name:      o.Name,
		Help:      o.Help,
		Buckets:   o.Buckets,
	}, o.LabelNames)
	p.register(hv)
	return kitprom.NewHistogram(hv)
}

func (p *Prometheus) register(c prom.Collector) {
	registerer := p.Registerer
	if registerer == nil {
		registerer = prom.DefaultRegisterer
	}
	if err := registerer.Register(c); err != nil {
		if _, ok := err.(prom.AlreadyRegisteredError); !ok {
			panic(err)
		}
	}
}

// Disabled is a provider whose instruments discard everything
type Disabled struct{}

// NewCounter returns a discarding counter
func (*Disabled) NewCounter(CounterOpts) kitmetrics.Counter { return discard.NewCounter() }

// NewHistogram returns a discarding histogram
func (*Disabled) NewHistogram(HistogramOpts) kitmetrics.Histogram { return discard.NewHistogram() }

func nonEmpty(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
