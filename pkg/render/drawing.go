package render

import (
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/redblack/pkg/rbtree"
)

// Drawer writes an indented drawing of a tree, one node per line:
//
//	10 (black)
//	├── L 5 (black)
//	│   └── R 8 (red)
//	└── R 15 (black)
type Drawer struct {
	red   *color.Color
	black *color.Color
}

// NewDrawer creates a Drawer. With colorize unset the output is plain text
// regardless of the terminal.
func NewDrawer(colorize bool) *Drawer {
	red := color.New(color.FgRed, color.Bold)
	black := color.New(color.FgHiWhite, color.BgBlack)

	if colorize {
		red.EnableColor()
		black.EnableColor()
	} else {
		red.DisableColor()
		black.DisableColor()
	}

	return &Drawer{red: red, black: black}
}

// Draw writes the drawing of shape to w. An empty tree is drawn as "(empty)".
func (d *Drawer) Draw(w io.Writer, shape *rbtree.Shape) error {
	var sb strings.Builder

	if shape == nil {
		sb.WriteString("(empty)\n")
	} else {
		sb.WriteString(d.label(shape))
		sb.WriteByte('\n')
		d.children(&sb, shape, "")
	}

	_, err := io.WriteString(w, sb.String())

	return err //nolint:wrapcheck // plain passthrough of the writer error.
}

func (d *Drawer) children(sb *strings.Builder, shape *rbtree.Shape, prefix string) {
	type branch struct {
		node *rbtree.Shape
		side string
	}

	var branches []branch

	if shape.Left != nil {
		branches = append(branches, branch{shape.Left, "L"})
	}

	if shape.Right != nil {
		branches = append(branches, branch{shape.Right, "R"})
	}

	for idx, br := range branches {
		connector, indent := "├── ", "│   "
		if idx == len(branches)-1 {
			connector, indent = "└── ", "    "
		}

		sb.WriteString(prefix + connector + br.side + " " + d.label(br.node) + "\n")
		d.children(sb, br.node, prefix+indent)
	}
}

func (d *Drawer) label(shape *rbtree.Shape) string {
	paint := d.black
	if shape.Red() {
		paint = d.red
	}

	label := strconv.Itoa(shape.Key)
	if shape.Value != shape.Key {
		label += "=" + strconv.Itoa(shape.Value)
	}

	return paint.Sprint(label) + " (" + shape.Color.String() + ")"
}
