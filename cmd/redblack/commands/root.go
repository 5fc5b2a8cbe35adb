// Package commands implements the redblack CLI subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/redblack/pkg/config"
	"github.com/Sumatoshi-tech/redblack/pkg/fixture"
	"github.com/Sumatoshi-tech/redblack/pkg/observability"
	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
	"github.com/Sumatoshi-tech/redblack/pkg/version"
)

const (
	rootCmdUse   = "redblack"
	rootCmdShort = "Red-black tree playground and benchmark"
	rootCmdLong  = `redblack inserts integer keys into a red-black tree and shows
how the insertion fixup keeps it balanced.

Commands:
  demo      Insert the sixteen-key demo sequence and print the tree
  insert    Insert your own keys or a fixture file
  render    Write the tree as an interactive HTML chart
  bench     Concurrent insert benchmark over a sharded tree`

	configFlag   = "config"
	logLevelFlag = "log-level"
	logJSONFlag  = "log-json"
	noColorFlag  = "no-color"
	fileFlag     = "file"
	searchFlag   = "search"
	formatFlag   = "format"

	outputTable = "table"
	outputYAML  = "yaml"
)

// ErrUnknownOutput is returned for an unsupported --format value.
var ErrUnknownOutput = errors.New("output format must be table or yaml")

// ErrInvalidKey is returned when a positional argument is not an integer.
var ErrInvalidKey = errors.New("keys must be integers")

// session carries what the persistent flags and the config file resolve to.
type session struct {
	cfg       *config.Config
	providers observability.Providers

	configPath string
	logLevel   string
	logJSON    bool
	noColor    bool
}

// NewRootCommand builds the redblack command tree.
func NewRootCommand() *cobra.Command {
	sess := &session{}

	cmd := &cobra.Command{
		Use:           rootCmdUse,
		Short:         rootCmdShort,
		Long:          rootCmdLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cobraCmd *cobra.Command, _ []string) error {
			return sess.open(cobraCmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&sess.configPath, configFlag, "", "config file (default: redblack.yaml in . or ./config)")
	flags.StringVar(&sess.logLevel, logLevelFlag, "", "log level: debug, info, warn, error")
	flags.BoolVar(&sess.logJSON, logJSONFlag, false, "write JSON log records")
	flags.BoolVar(&sess.noColor, noColorFlag, false, "disable colored output")

	cmd.AddCommand(
		newDemoCommand(sess),
		newInsertCommand(sess),
		newRenderCommand(sess),
		newBenchCommand(sess),
		newVersionCommand(),
	)

	// PersistentPostRun is skipped when RunE fails, so flushing telemetry
	// is attached to every subcommand instead.
	for _, sub := range cmd.Commands() {
		if sub.RunE != nil {
			sub.RunE = sess.closing(sub.RunE)
		}
	}

	return cmd
}

type runFunc func(cobraCmd *cobra.Command, args []string) error

func (sess *session) closing(run runFunc) runFunc {
	return func(cobraCmd *cobra.Command, args []string) error {
		defer sess.close()

		return run(cobraCmd, args)
	}
}

func (sess *session) open(cobraCmd *cobra.Command) error {
	cfg, err := config.LoadConfig(sess.configPath)
	if err != nil {
		return err
	}

	if sess.logLevel != "" {
		cfg.Logging.Level = sess.logLevel
	}

	if sess.logJSON {
		cfg.Logging.Format = config.LogFormatJSON
	}

	level, err := observability.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceName = cfg.Telemetry.ServiceName
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.Sampler = cfg.Telemetry.Sampler
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.ShutdownTimeoutSec = int(cfg.Telemetry.ShutdownTimeout / time.Second)
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON

	if cobraCmd.Name() == benchCmdName {
		obsCfg.Mode = observability.ModeBench
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	sess.cfg = cfg
	sess.providers = providers

	providers.Logger.Debug("configuration loaded",
		"command", cobraCmd.Name(),
		"arena_capacity", cfg.Tree.ArenaCapacity,
		"max_nodes", cfg.Tree.MaxNodes)

	return nil
}

func (sess *session) close() {
	if sess.providers.Shutdown == nil {
		return
	}

	err := sess.providers.Shutdown(context.Background())
	if err != nil {
		sess.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

func (sess *session) logger() *slog.Logger {
	if sess.providers.Logger == nil {
		return slog.Default()
	}

	return sess.providers.Logger
}

func (sess *session) colorize() bool {
	return !sess.noColor && !color.NoColor
}

// newTree builds an empty tree sized by the tree section of the config.
func (sess *session) newTree() (*rbtree.Tree, error) {
	capacity, err := sess.cfg.Tree.ArenaCapacityNodes()
	if err != nil {
		return nil, err
	}

	limit, err := sess.cfg.Tree.MaxNodesLimit()
	if err != nil {
		return nil, err
	}

	arena := rbtree.NewArena(capacity)
	arena.MaxNodes = limit
	arena.HibernationThreshold = sess.cfg.Tree.HibernationThreshold

	return rbtree.New(arena), nil
}

// buildTree inserts fix into a fresh tree.
func (sess *session) buildTree(ctx context.Context, fix fixture.Fixture) (*rbtree.Tree, error) {
	_, span := sess.providers.Tracer.Start(ctx, "redblack.build")
	defer span.End()

	tree, err := sess.newTree()
	if err != nil {
		return nil, err
	}

	err = fix.InsertInto(tree)
	if err != nil {
		span.RecordError(err)

		return nil, err
	}

	sess.logger().DebugContext(ctx, "fixture inserted",
		"fixture", fix.Name, "nodes", tree.Len(), "height", tree.Height())

	return tree, nil
}

// resolveFixture merges a fixture file with positional keys. Without either
// the demo fixture is used.
func resolveFixture(path string, args []string) (fixture.Fixture, error) {
	keys, err := parseKeys(args)
	if err != nil {
		return fixture.Fixture{}, err
	}

	if path == "" {
		if len(keys) == 0 {
			return fixture.Demo(), nil
		}

		return fixture.FromKeys("keys", keys), nil
	}

	fix, err := fixture.Load(path)
	if err != nil {
		return fixture.Fixture{}, err
	}

	fix.Entries = append(fix.Entries, fixture.FromKeys("", keys).Entries...)

	return fix, nil
}

func parseKeys(args []string) ([]int, error) {
	keys := make([]int, 0, len(args))

	for _, arg := range args {
		key, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, arg)
		}

		keys = append(keys, key)
	}

	return keys, nil
}
