package observability

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// metricBuilder creates instruments named prefix.suffix on one meter and
// collects every creation error, so a whole set is checked once.
type metricBuilder struct {
	meter  metric.Meter
	prefix string
	errs   []error
}

func newMetricBuilder(mt metric.Meter, prefix string) *metricBuilder {
	return &metricBuilder{meter: mt, prefix: prefix}
}

func (b *metricBuilder) name(suffix string) string {
	return b.prefix + "." + suffix
}

func (b *metricBuilder) counter(suffix, desc, unit string) metric.Int64Counter {
	name := b.name(suffix)
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.record(name, err)

	return c
}

// histogram uses the SDK default buckets when bounds is empty.
func (b *metricBuilder) histogram(suffix, desc, unit string, bounds []float64) metric.Float64Histogram {
	name := b.name(suffix)
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit(unit)}

	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	h, err := b.meter.Float64Histogram(name, opts...)
	b.record(name, err)

	return h
}

func (b *metricBuilder) gauge(suffix, desc, unit string) metric.Int64ObservableGauge {
	name := b.name(suffix)
	g, err := b.meter.Int64ObservableGauge(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.record(name, err)

	return g
}

func (b *metricBuilder) record(name string, err error) {
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("create %s: %w", name, err))
	}
}

// err joins every creation error, or returns nil.
func (b *metricBuilder) err() error {
	return errors.Join(b.errs...)
}
