package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/redblack/pkg/render"
)

const (
	renderCmdUse   = "render [keys...]"
	renderCmdShort = "Write the tree as an interactive HTML chart"
	renderCmdLong  = `Insert the given keys (or a fixture file, or the demo sequence when
neither is given) and write an HTML page with a zoomable tree chart.
Red nodes are drawn red, nil leaves are drawn as grey placeholders.`

	outFlag        = "out"
	outShort       = "o"
	outUsage       = `output HTML file, "-" for stdout`
	defaultOutPath = "redblack.html"
	stdoutPath     = "-"
	titleFlag      = "title"
	titleUsage     = "chart title (default: the fixture name)"
	renderFilePerm = 0o644
)

func newRenderCommand(sess *session) *cobra.Command {
	var (
		out   string
		file  string
		title string
	)

	cmd := &cobra.Command{
		Use:   renderCmdUse,
		Short: renderCmdShort,
		Long:  renderCmdLong,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			ctx, span := sess.providers.Tracer.Start(cobraCmd.Context(), "redblack.render")
			defer span.End()

			fix, err := resolveFixture(file, args)
			if err != nil {
				return err
			}

			tree, err := sess.buildTree(ctx, fix)
			if err != nil {
				return err
			}

			if title == "" {
				title = fix.Name
			}

			if out == stdoutPath {
				return render.WriteHTML(cobraCmd.OutOrStdout(), title, tree.Shape())
			}

			outFile, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, renderFilePerm)
			if err != nil {
				return fmt.Errorf("create chart: %w", err)
			}

			err = render.WriteHTML(outFile, title, tree.Shape())
			closeErr := outFile.Close()

			if err != nil {
				return err
			}

			if closeErr != nil {
				return fmt.Errorf("close chart: %w", closeErr)
			}

			sess.logger().InfoContext(ctx, "chart written", "path", out, "nodes", tree.Len())

			return nil
		},
	}

	cmd.Flags().StringVarP(&out, outFlag, outShort, defaultOutPath, outUsage)
	cmd.Flags().StringVarP(&file, fileFlag, "f", "", fileUsage)
	cmd.Flags().StringVar(&title, titleFlag, "", titleUsage)

	return cmd
}
