package render

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

const noNode = "-"

// NodeTable lists the nodes of shape in key order with their links and depth.
func NodeTable(shape *rbtree.Shape) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Key", "Value", "Color", "Parent", "Left", "Right", "Depth"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Key", Align: text.AlignRight},
		{Name: "Value", Align: text.AlignRight},
		{Name: "Depth", Align: text.AlignRight},
	})

	appendRows(tw, shape, nil, 0)

	return tw.Render()
}

func appendRows(tw table.Writer, shape, parent *rbtree.Shape, depth int) {
	if shape == nil {
		return
	}

	appendRows(tw, shape.Left, shape, depth+1)
	tw.AppendRow(table.Row{
		shape.Key, shape.Value, shape.Color.String(),
		keyOf(parent), keyOf(shape.Left), keyOf(shape.Right), depth,
	})
	appendRows(tw, shape.Right, shape, depth+1)
}

func keyOf(shape *rbtree.Shape) string {
	if shape == nil {
		return noNode
	}

	return strconv.Itoa(shape.Key)
}

// SummaryTable renders the scalar part of a report.
func SummaryTable(report Report) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(report.Name)

	valid := "yes"
	if !report.Valid {
		valid = "no: " + report.Violation
	}

	tw.AppendRows([]table.Row{
		{"nodes", humanize.Comma(int64(report.Size))},
		{"height", report.Height},
		{"black height", report.BlackHeight},
		{"root", report.RootColor},
		{"valid", valid},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"fixup iterations", humanize.Comma(report.Stats.FixupIterations)},
		{"recolors", humanize.Comma(report.Stats.Recolors)},
		{"rotations", humanize.Comma(report.Stats.Rotations)},
		{"red uncle (A)", humanize.Comma(report.Stats.CaseA)},
		{"inner child (B)", humanize.Comma(report.Stats.CaseB)},
		{"outer child (C)", humanize.Comma(report.Stats.CaseC)},
	})

	if len(report.Lookups) > 0 {
		tw.AppendSeparator()

		for _, lookup := range report.Lookups {
			result := "not found"
			if lookup.Found {
				result = strconv.Itoa(lookup.Value)
			}

			tw.AppendRow(table.Row{"search(" + strconv.Itoa(lookup.Key) + ")", result})
		}
	}

	return tw.Render()
}
