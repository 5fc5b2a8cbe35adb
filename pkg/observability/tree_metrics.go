package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

const (
	metricPrefix          = "redblack.tree"
	metricInserts         = "inserts"
	metricSearches        = "searches"
	metricRotations       = "rotations"
	metricRecolors        = "recolors"
	metricFixupIterations = "fixup.iterations"
	metricBatchDuration   = "batch.duration.seconds"
	metricNodes           = "nodes"

	attrResult = "result"
	attrCase   = "case"

	resultHit  = "hit"
	resultMiss = "miss"
)

// fixupBucketBoundaries are mean fixup iterations per insert. Random input
// settles well below one; sorted input stays under a handful.
var fixupBucketBoundaries = []float64{0, 0.25, 0.5, 0.75, 1, 1.5, 2, 4, 8}

// batchBucketBoundaries covers 10us to 10s per insert batch.
var batchBucketBoundaries = []float64{0.00001, 0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

// NodeCounter reports the current number of nodes, e.g. [rbtree.ShardedTree].
type NodeCounter interface {
	Len() int
}

// TreeMetrics holds the OTel instruments describing tree work.
type TreeMetrics struct {
	inserts         metric.Int64Counter
	searches        metric.Int64Counter
	rotations       metric.Int64Counter
	recolors        metric.Int64Counter
	fixupIterations metric.Float64Histogram
	batchDuration   metric.Float64Histogram
	registration    metric.Registration
}

// NewTreeMetrics creates the tree instruments on mt. When nodes is not nil,
// its size is exported through the redblack.tree.nodes gauge at every collection.
func NewTreeMetrics(mt metric.Meter, nodes NodeCounter) (*TreeMetrics, error) {
	b := newMetricBuilder(mt, metricPrefix)

	tm := &TreeMetrics{
		inserts:   b.counter(metricInserts, "Nodes inserted", "{node}"),
		searches:  b.counter(metricSearches, "Point lookups by result", "{search}"),
		rotations: b.counter(metricRotations, "Rotations by fixup case", "{rotation}"),
		recolors:  b.counter(metricRecolors, "Node color changes during fixup", "{recolor}"),
		fixupIterations: b.histogram(metricFixupIterations,
			"Mean fixup loop iterations per insert of a batch", "{iteration}", fixupBucketBoundaries),
		batchDuration: b.histogram(metricBatchDuration,
			"Duration of one insert batch", "s", batchBucketBoundaries),
	}

	nodesGauge := b.gauge(metricNodes, "Nodes currently stored", "{node}")

	err := b.err()
	if err != nil {
		return nil, err
	}

	if nodes == nil {
		return tm, nil
	}

	reg, err := mt.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		obs.ObserveInt64(nodesGauge, int64(nodes.Len()))

		return nil
	}, nodesGauge)
	if err != nil {
		return nil, err //nolint:wrapcheck // the SDK error already names the instrument.
	}

	tm.registration = reg

	return tm, nil
}

// RecordBatch records the work of one insert batch. delta is the difference
// of [rbtree.Stats] before and after the batch.
func (tm *TreeMetrics) RecordBatch(ctx context.Context, delta rbtree.Stats, duration time.Duration) {
	if delta.Inserts == 0 {
		return
	}

	tm.inserts.Add(ctx, delta.Inserts)
	tm.recolors.Add(ctx, delta.Recolors)

	// Every inner rotation (case B) is followed by an outer one (case C).
	tm.rotations.Add(ctx, delta.CaseB, metric.WithAttributes(attribute.String(attrCase, "inner")))
	tm.rotations.Add(ctx, delta.Rotations-delta.CaseB, metric.WithAttributes(attribute.String(attrCase, "outer")))

	tm.fixupIterations.Record(ctx, float64(delta.FixupIterations)/float64(delta.Inserts))
	tm.batchDuration.Record(ctx, duration.Seconds())
}

// RecordSearch counts one lookup.
func (tm *TreeMetrics) RecordSearch(ctx context.Context, found bool) {
	result := resultMiss
	if found {
		result = resultHit
	}

	tm.searches.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// Close stops exporting the node gauge.
func (tm *TreeMetrics) Close() error {
	if tm.registration == nil {
		return nil
	}

	return tm.registration.Unregister() //nolint:wrapcheck // nothing to add.
}
