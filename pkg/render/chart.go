package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

const (
	chartWidth  = "100%"
	chartHeight = "800px"

	colorRedNode   = "#d62728"
	colorBlackNode = "#1f1f1f"
	colorAbsent    = "#bbbbbb"

	nodeSymbolSize   = 18
	absentSymbolSize = 6
)

// Chart builds an interactive top-down tree chart of shape.
//
// ECharts has no notion of left and right children, so a node with a single
// child gets a small grey placeholder on the missing side.
func Chart(title string, shape *rbtree.Shape) *charts.Tree {
	tree := charts.NewTree()
	tree.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     chartWidth,
			Height:    chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	var data []opts.TreeData
	if shape != nil {
		data = []opts.TreeData{*treeData(shape)}
	}

	tree.AddSeries(title, data,
		charts.WithTreeOpts(opts.TreeChart{
			Layout:           "orthogonal",
			Orient:           "TB",
			InitialTreeDepth: -1,
			Roam:             opts.Bool(true),
			Label:            &opts.Label{Show: opts.Bool(true), Position: "top"},
		}),
	)

	return tree
}

// WriteHTML renders the chart of shape as a standalone HTML page.
func WriteHTML(w io.Writer, title string, shape *rbtree.Shape) error {
	err := Chart(title, shape).Render(w)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}

func treeData(shape *rbtree.Shape) *opts.TreeData {
	fill := colorBlackNode
	if shape.Red() {
		fill = colorRedNode
	}

	node := &opts.TreeData{
		Name:       strconv.Itoa(shape.Key),
		Value:      shape.Value,
		SymbolSize: nodeSymbolSize,
		ItemStyle:  &opts.ItemStyle{Color: fill},
	}

	if shape.Left == nil && shape.Right == nil {
		return node
	}

	node.Children = []*opts.TreeData{childData(shape.Left), childData(shape.Right)}

	return node
}

func childData(shape *rbtree.Shape) *opts.TreeData {
	if shape == nil {
		return &opts.TreeData{
			Name:       "nil",
			Symbol:     "rect",
			SymbolSize: absentSymbolSize,
			ItemStyle:  &opts.ItemStyle{Color: colorAbsent},
		}
	}

	return treeData(shape)
}
