package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/redblack/pkg/fixture"
	"github.com/Sumatoshi-tech/redblack/pkg/render"
)

const (
	demoCmdUse   = "demo"
	demoCmdShort = "Insert the sixteen-key demo sequence and print the tree"
	demoCmdLong  = `Insert 10 5 15 3 7 12 17 1 9 14 20 8 11 18 6 2 (each value equal to
its key), then print the nodes, a drawing and a summary with the
searches for 11 and 99.`

	insertCmdUse     = "insert [keys...]"
	insertCmdShort   = "Insert keys or a fixture file and print the tree"
	insertCmdExample = `  redblack insert 1 2 3
  redblack insert --file keys.yaml --search 7
  redblack insert -- -4 0 4`

	formatUsage = "output format: table or yaml"
	fileUsage   = "fixture file (.json, .yaml) inserted before the positional keys"
	searchUsage = "key to search for after inserting (repeatable)"
)

// demoSearches are the lookups the demo reports: one hit and one miss.
var demoSearches = []int{11, 99}

func newDemoCommand(sess *session) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   demoCmdUse,
		Short: demoCmdShort,
		Long:  demoCmdLong,
		Args:  cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return sess.runReport(cobraCmd.Context(), cobraCmd.OutOrStdout(), fixture.Demo(), format, demoSearches)
		},
	}

	cmd.Flags().StringVar(&format, formatFlag, outputTable, formatUsage)

	return cmd
}

func newInsertCommand(sess *session) *cobra.Command {
	var (
		format   string
		file     string
		searches []int
	)

	cmd := &cobra.Command{
		Use:     insertCmdUse,
		Short:   insertCmdShort,
		Example: insertCmdExample,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			if file == "" && len(args) == 0 {
				return cobraCmd.Help()
			}

			fix, err := resolveFixture(file, args)
			if err != nil {
				return err
			}

			return sess.runReport(cobraCmd.Context(), cobraCmd.OutOrStdout(), fix, format, searches)
		},
	}

	cmd.Flags().StringVar(&format, formatFlag, outputTable, formatUsage)
	cmd.Flags().StringVarP(&file, fileFlag, "f", "", fileUsage)
	cmd.Flags().IntSliceVarP(&searches, searchFlag, "s", nil, searchUsage)

	return cmd
}

func (sess *session) runReport(ctx context.Context, w io.Writer, fix fixture.Fixture, format string, searches []int) error {
	if format != outputTable && format != outputYAML {
		return fmt.Errorf("%w: %q", ErrUnknownOutput, format)
	}

	ctx, span := sess.providers.Tracer.Start(ctx, "redblack.report")
	defer span.End()

	tree, err := sess.buildTree(ctx, fix)
	if err != nil {
		return err
	}

	report := render.NewReport(fix.Name, tree, searches...)
	if !report.Valid {
		sess.logger().ErrorContext(ctx, "tree failed validation", "violation", report.Violation)
	}

	if format == outputYAML {
		data, yamlErr := render.YAML(report)
		if yamlErr != nil {
			return yamlErr
		}

		_, err = w.Write(data)

		return err
	}

	return sess.writeTables(w, report)
}

func (sess *session) writeTables(w io.Writer, report render.Report) error {
	_, err := fmt.Fprintln(w, render.NodeTable(report.Tree))
	if err != nil {
		return err
	}

	err = render.NewDrawer(sess.colorize()).Draw(w, report.Tree)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, render.SummaryTable(report))

	return err
}
