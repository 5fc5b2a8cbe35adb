package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/redblack/pkg/observability"
	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
	"github.com/Sumatoshi-tech/redblack/pkg/safeconv"
)

const (
	benchCmdName  = "bench"
	benchCmdShort = "Concurrent insert benchmark over a sharded tree"
	benchCmdLong  = `Insert pseudo-random keys from several workers into a sharded tree,
then search a sample of them back, validate every shard and report
throughput. Keys are spread over shards by key modulo shard count.

Unset flags fall back to the bench section of the config file.`

	insertsFlag     = "inserts"
	shardsFlag      = "shards"
	workersFlag     = "workers"
	batchSizeFlag   = "batch-size"
	seedFlag        = "seed"
	hibernateFlag   = "hibernate"
	metricsAddrFlag = "metrics-addr"

	metricsShutdownTimeout = 5 * time.Second

	// sampleSize is how many inserted keys each worker searches back.
	sampleSize = 1024
)

// ErrLostKey is returned when an inserted key cannot be found again.
var ErrLostKey = errors.New("inserted key not found")

// ErrBenchRunning is the readiness failure while keys are still being inserted.
var ErrBenchRunning = errors.New("bench is still inserting")

// ErrPhantomKey is returned when a key that was never inserted is found.
var ErrPhantomKey = errors.New("search found a key that was never inserted")

type benchOptions struct {
	metricsAddr string
	inserts     int
	shards      int
	workers     int
	batchSize   int
	seed        int64
	hibernate   bool
}

type benchResult struct {
	stats      rbtree.Stats
	inserted   int
	nodes      int
	searches   int
	elapsed    time.Duration
	hibernate  time.Duration
	boot       time.Duration
	compressed int
	hibernated bool
}

func newBenchCommand(sess *session) *cobra.Command {
	var opts benchOptions

	cmd := &cobra.Command{
		Use:   benchCmdName,
		Short: benchCmdShort,
		Long:  benchCmdLong,
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			sess.fillBenchOptions(cobraCmd, &opts)

			return sess.runBench(cobraCmd.Context(), cobraCmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.inserts, insertsFlag, 0, "number of keys to insert")
	flags.IntVar(&opts.shards, shardsFlag, 0, "number of independent trees")
	flags.IntVar(&opts.workers, workersFlag, 0, "number of inserting goroutines")
	flags.IntVar(&opts.batchSize, batchSizeFlag, 0, "inserts per batch; cancellation is checked between batches")
	flags.Int64Var(&opts.seed, seedFlag, 0, "random seed")
	flags.BoolVar(&opts.hibernate, hibernateFlag, false, "compress and restore every shard after inserting")
	flags.StringVar(&opts.metricsAddr, metricsAddrFlag, "", "serve Prometheus metrics on this address while running")

	return cmd
}

func (sess *session) fillBenchOptions(cobraCmd *cobra.Command, opts *benchOptions) {
	flags := cobraCmd.Flags()
	bench := sess.cfg.Bench

	if !flags.Changed(insertsFlag) {
		opts.inserts = bench.Inserts
	}

	if !flags.Changed(shardsFlag) {
		opts.shards = bench.Shards
	}

	if !flags.Changed(workersFlag) {
		opts.workers = bench.Workers
	}

	if !flags.Changed(batchSizeFlag) {
		opts.batchSize = bench.BatchSize
	}

	if !flags.Changed(seedFlag) {
		opts.seed = bench.Seed
	}

	if !flags.Changed(hibernateFlag) {
		opts.hibernate = bench.Hibernate
	}

	if !flags.Changed(metricsAddrFlag) {
		opts.metricsAddr = bench.MetricsAddr
	}
}

func (opts benchOptions) validate() error {
	for _, check := range []struct {
		name  string
		value int
	}{
		{insertsFlag, opts.inserts},
		{shardsFlag, opts.shards},
		{workersFlag, opts.workers},
		{batchSizeFlag, opts.batchSize},
	} {
		if check.value <= 0 {
			return fmt.Errorf("--%s must be positive, got %d", check.name, check.value)
		}
	}

	return nil
}

func (sess *session) runBench(ctx context.Context, w io.Writer, opts benchOptions) error {
	err := opts.validate()
	if err != nil {
		return err
	}

	ctx, span := sess.providers.Tracer.Start(ctx, "redblack.bench")
	defer span.End()

	span.SetAttributes(
		attribute.Int("bench.inserts", opts.inserts),
		attribute.Int("bench.shards", opts.shards),
		attribute.Int("bench.workers", opts.workers),
	)

	capacity, err := sess.cfg.Tree.ArenaCapacityNodes()
	if err != nil {
		return err
	}

	limit, err := sess.cfg.Tree.MaxNodesLimit()
	if err != nil {
		return err
	}

	sharded := rbtree.NewShardedTree(rbtree.ShardConfig{
		Shards:               opts.shards,
		ArenaCapacity:        max(capacity, opts.inserts),
		MaxNodes:             limit,
		HibernationThreshold: sess.cfg.Tree.HibernationThreshold,
	})

	runner := &benchRunner{opts: opts, tree: sharded, logger: sess.logger()}

	meter, stopMetrics, err := sess.benchMeter(ctx, opts.metricsAddr, runner.ready)
	if err != nil {
		return err
	}
	defer stopMetrics()

	treeMetrics, err := observability.NewTreeMetrics(meter, sharded)
	if err != nil {
		return fmt.Errorf("create tree metrics: %w", err)
	}

	defer func() {
		closeErr := treeMetrics.Close()
		if closeErr != nil {
			sess.logger().WarnContext(ctx, "tree metrics close failed", "error", closeErr)
		}
	}()

	runner.metrics = treeMetrics

	result, runErr := runner.run(ctx)
	if runErr == nil {
		runErr = runner.finish(ctx, &result)
	}

	if runErr != nil {
		span.RecordError(runErr)
	}

	writeErr := writeBenchTable(w, opts, result)

	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		return errors.Join(fmt.Errorf("bench interrupted after %d inserts: %w", result.inserted, runErr), writeErr)
	case runErr != nil:
		return errors.Join(runErr, writeErr)
	}

	sess.logger().InfoContext(ctx, "bench finished",
		"inserts", result.inserted,
		"elapsed", result.elapsed,
		"nodes", result.nodes)

	return writeErr
}

// benchMeter returns the meter bench instruments are created on. With an
// address it serves a private Prometheus registry there, next to health and
// readiness probes, until stop is called. Readiness follows ready.
func (sess *session) benchMeter(
	ctx context.Context, addr string, ready observability.ReadyCheck,
) (metric.Meter, func(), error) {
	if addr == "" {
		return sess.providers.Meter, func() {}, nil
	}

	provider, err := observability.NewPrometheusProvider()
	if err != nil {
		return nil, nil, err
	}

	srv, err := observability.NewDiagnosticsServer(ctx, addr, provider.Handler, sess.logger(), ready)
	if err != nil {
		return nil, nil, errors.Join(err, provider.Shutdown(ctx))
	}

	sess.logger().InfoContext(ctx, "serving metrics", "addr", srv.Addr(), "path", observability.MetricsPath)

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()

		err := errors.Join(srv.Close(shutdownCtx), provider.Shutdown(shutdownCtx))
		if err != nil {
			sess.logger().Warn("metrics shutdown failed", "error", err)
		}
	}

	return provider.Meter(observability.ScopeName), stop, nil
}

type benchRunner struct {
	tree    *rbtree.ShardedTree
	metrics *observability.TreeMetrics
	logger  *slog.Logger
	samples [][]int
	cursor  statsCursor
	opts    benchOptions
	done    atomic.Bool
}

// ready reports readiness once every key is inserted and validated.
func (br *benchRunner) ready(_ context.Context) error {
	if !br.done.Load() {
		return ErrBenchRunning
	}

	return nil
}

// statsCursor turns the cumulative counters of a shared tree into per-batch
// deltas. Reads are serialized so deltas never go negative.
type statsCursor struct {
	last rbtree.Stats
	mu   sync.Mutex
}

func (sc *statsCursor) advance(tree *rbtree.ShardedTree) rbtree.Stats {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	now := tree.Stats()
	delta := now.Sub(sc.last)
	sc.last = now

	return delta
}

// keySpan is the width of the key range, centered on zero.
func (br *benchRunner) keySpan() int {
	return max(4*br.opts.inserts, 2)
}

func (br *benchRunner) run(ctx context.Context) (benchResult, error) {
	started := time.Now()
	br.samples = make([][]int, br.opts.workers)

	group, groupCtx := errgroup.WithContext(ctx)

	share, extra := br.opts.inserts/br.opts.workers, br.opts.inserts%br.opts.workers

	for worker := range br.opts.workers {
		count := share
		if worker < extra {
			count++
		}

		group.Go(func() error {
			return br.insertWorker(groupCtx, worker, count)
		})
	}

	err := group.Wait()
	stats := br.tree.Stats()

	return benchResult{
		stats:    stats,
		inserted: int(stats.Inserts),
		nodes:    br.tree.Len(),
		elapsed:  time.Since(started),
	}, err //nolint:wrapcheck // worker errors are annotated.
}

func (br *benchRunner) insertWorker(ctx context.Context, worker, count int) error {
	rng := rand.New(rand.NewSource(br.opts.seed + int64(worker))) //nolint:gosec // reproducible workload.
	span := br.keySpan()
	sample := make([]int, 0, min(count, sampleSize))

	for done := 0; done < count; {
		err := ctx.Err()
		if err != nil {
			return err //nolint:wrapcheck // context errors are matched by the caller.
		}

		batch := min(br.opts.batchSize, count-done)
		started := time.Now()

		for range batch {
			key := rng.Intn(span) - span/2

			insertErr := br.tree.Insert(key, done)
			if insertErr != nil {
				return fmt.Errorf("worker %d insert %d: %w", worker, done, insertErr)
			}

			if len(sample) < cap(sample) {
				sample = append(sample, key)
			}

			done++
		}

		br.metrics.RecordBatch(ctx, br.cursor.advance(br.tree), time.Since(started))
	}

	br.samples[worker] = sample

	br.logger.DebugContext(ctx, "worker finished", "worker", worker, "inserts", count)

	return nil
}

// finish searches the samples back, validates every shard and optionally
// round-trips all arenas through hibernation.
func (br *benchRunner) finish(ctx context.Context, result *benchResult) error {
	for _, sample := range br.samples {
		for idx, key := range sample {
			_, found := br.tree.Search(key)
			br.metrics.RecordSearch(ctx, found)

			if !found {
				return fmt.Errorf("%w: %d", ErrLostKey, key)
			}

			// Keys beyond the span are never inserted.
			miss := br.keySpan() + idx
			_, found = br.tree.Search(miss)
			br.metrics.RecordSearch(ctx, found)

			if found {
				return fmt.Errorf("%w: %d", ErrPhantomKey, miss)
			}

			result.searches += 2
		}
	}

	err := br.tree.Validate()
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	br.done.Store(true)

	if !br.opts.hibernate {
		return nil
	}

	started := time.Now()

	err = br.tree.Hibernate()
	if err != nil {
		return fmt.Errorf("hibernate: %w", err)
	}

	result.hibernate = time.Since(started)
	result.compressed, result.hibernated = br.compressedSize()

	started = time.Now()

	err = br.tree.Boot()
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	result.boot = time.Since(started)

	err = br.tree.Validate()
	if err != nil {
		return fmt.Errorf("validate after boot: %w", err)
	}

	return nil
}

func (br *benchRunner) compressedSize() (int, bool) {
	total, hibernated := 0, false

	for _, shard := range br.tree.Shards() {
		shard.View(func(tree *rbtree.Tree) {
			total += tree.Arena().CompressedSize()
			hibernated = hibernated || tree.Arena().Hibernated()
		})
	}

	return total, hibernated
}

func writeBenchTable(w io.Writer, opts benchOptions, result benchResult) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("bench")

	rate := 0.0
	if result.elapsed > 0 {
		rate = float64(result.inserted) / result.elapsed.Seconds()
	}

	perInsert := 0.0
	if result.stats.Inserts > 0 {
		perInsert = float64(result.stats.FixupIterations) / float64(result.stats.Inserts)
	}

	tw.AppendRows([]table.Row{
		{"shards", opts.shards},
		{"workers", opts.workers},
		{"batch size", humanize.Comma(int64(opts.batchSize))},
		{"inserted", humanize.Comma(int64(result.inserted))},
		{"elapsed", result.elapsed.Round(time.Microsecond)},
		{"throughput", humanize.Comma(int64(rate)) + "/s"},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"nodes", humanize.Comma(int64(result.nodes))},
		{"rotations", humanize.Comma(result.stats.Rotations)},
		{"recolors", humanize.Comma(result.stats.Recolors)},
		{"fixups per insert", humanize.FormatFloat("#.###", perInsert)},
		{"searches", humanize.Comma(int64(result.searches))},
	})

	if opts.hibernate {
		tw.AppendSeparator()

		compressed := "below threshold"
		if result.hibernated {
			compressed = humanize.Bytes(safeconv.MustIntToUint64(result.compressed))
		}

		tw.AppendRows([]table.Row{
			{"hibernated", compressed},
			{"hibernate", result.hibernate.Round(time.Microsecond)},
			{"boot", result.boot.Round(time.Microsecond)},
		})
	}

	_, err := fmt.Fprintln(w, tw.Render())

	return err //nolint:wrapcheck // plain passthrough of the writer error.
}
