package otel

import (
	"context"
	"errors"
	"fmt"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() taroAuth.MetricsSnapshot
	AuditDropped() uint64
	ExpiryQueueDropped() uint64
}

// latencySeries exports one registry histogram as a cumulative bucket gauge
// keyed by the "le" attribute, plus a sample count gauge.
type latencySeries struct {
	id      taroAuth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes engine metrics as observable instruments on a caller-owned Meter.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters      map[taroAuth.MetricID]metric.Int64ObservableCounter
	latency       []latencySeries
	leAttrs       []metric.ObserveOption
	auditDropped  metric.Int64ObservableCounter
	expiryDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers observable instruments on meter that read the
// engine's counters at collection time.
func NewOTelExporter(meter metric.Meter, engine *taroAuth.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter over any metrics snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:   source,
		counters: make(map[taroAuth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	for _, le := range internaldefs.HistogramBounds {
		e.leAttrs = append(e.leAttrs, metric.WithAttributes(attribute.String("le", le)))
	}

	var observables []metric.Observable
	newCounter := func(name, help string) (metric.Int64ObservableCounter, error) {
		c, err := meter.Int64ObservableCounter(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", name, err)
		}
		observables = append(observables, c)
		return c, nil
	}
	newGauge := func(name, help string) (metric.Int64ObservableGauge, error) {
		g, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
		if err != nil {
			return nil, fmt.Errorf("create gauge %s: %w", name, err)
		}
		observables = append(observables, g)
		return g, nil
	}

	for _, def := range internaldefs.CounterDefs {
		c, err := newCounter(def.Name, def.Help)
		if err != nil {
			return nil, err
		}
		e.counters[def.ID] = c
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := newGauge(def.Name+"_bucket", def.Help+" Cumulative count per le bound.")
		if err != nil {
			return nil, err
		}
		count, err := newGauge(def.Name+"_count", def.Help+" Total samples.")
		if err != nil {
			return nil, err
		}
		e.latency = append(e.latency, latencySeries{id: def.ID, buckets: buckets, count: count})
	}

	var err error
	if e.auditDropped, err = newCounter(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp); err != nil {
		return nil, err
	}
	if e.expiryDropped, err = newCounter(internaldefs.ExpiryQueueDroppedName, internaldefs.ExpiryQueueDroppedHelp); err != nil {
		return nil, err
	}

	if e.registration, err = meter.RegisterCallback(e.observe, observables...); err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, c := range e.counters {
		o.ObserveInt64(c, int64(snap.Counters[id]))
	}
	for _, s := range e.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[s.id]))
		for i, v := range cumulative {
			o.ObserveInt64(s.buckets, int64(v), e.leAttrs[i])
		}
		o.ObserveInt64(s.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	o.ObserveInt64(e.expiryDropped, int64(e.source.ExpiryQueueDropped()))
	return nil
}

// Close unregisters the callback. The Meter stays owned by the caller.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
