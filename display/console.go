// Package display renders the status tree to the console. It is the terminal
// stand-in for the dashboard's rendering layer: tree mutations arrive through
// the tree.Display capability, and the full picture is drawn on demand as a
// box-drawing tree plus a summary table.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-dashboard/tree"
	"github.com/ethereum-optimism/infra/op-dashboard/types"
	"github.com/ethereum-optimism/infra/op-dashboard/ui"
)

const minTreeWidth = 44

// Console reflects tree updates into log output as they happen and renders
// the visible tree and a summary table on demand.
type Console struct {
	out io.Writer
	log log.Logger
}

// NewConsole creates a console display writing to out (os.Stdout when nil).
func NewConsole(out io.Writer, logger log.Logger) *Console {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = log.New()
	}
	return &Console{out: out, log: logger}
}

var _ tree.Display = (*Console)(nil)

// A terminal cannot edit what it already printed, so the per-node callbacks
// only trace; Render draws the current picture when asked.

func (c *Console) CreateElement(node *tree.TestObject) {
	c.log.Debug("display: element created", "fullname", node.Fullname)
}

func (c *Console) SetRootElement(node *tree.TestObject) {
	c.log.Debug("display: root element set", "label", node.Label())
}

func (c *Console) AddChildElement(parent, child *tree.TestObject, position int) {
	c.log.Debug("display: element attached",
		"parent", parent.Fullname, "child", child.Fullname, "position", position)
}

func (c *Console) UpdateVisibility(node *tree.TestObject) {
	c.log.Debug("display: visibility updated", "fullname", node.Fullname, "visible", node.Visible)
}

func (c *Console) UpdateDisplayedState(node *tree.TestObject) {
	c.log.Debug("display: state updated", "fullname", node.Fullname, "state", node.State)
}

// Render writes the visible tree followed by the summary table.
func (c *Console) Render(root *tree.TestObject) {
	fmt.Fprint(c.out, RenderTree(root))
	c.RenderSummary(root)
}

// RenderTree draws the visible part of the subtree as a box-drawing tree.
// Children appear in insertion order; invisible nodes (and their subtrees,
// unless a descendant is visible) are elided by the visibility filter itself.
func RenderTree(root *tree.TestObject) string {
	lines := []string{fmt.Sprintf("%s %s", root.Label(), stateTag(root.State))}
	collectTreeLines(&lines, root, 1, nil)

	width := minTreeWidth
	for _, line := range lines {
		if l := utf8.RuneCountInString(line) + 4; l > width {
			width = l
		}
	}

	var b strings.Builder
	b.WriteString(ui.BuildBoxHeader("Test Results", width))
	for _, line := range lines {
		b.WriteString(ui.BuildBoxLine(line, width))
	}
	b.WriteString(ui.BuildBoxFooter(width))
	return b.String()
}

func collectTreeLines(lines *[]string, node *tree.TestObject, depth int, parentIsLast []bool) {
	visible := make([]*tree.TestObject, 0, len(node.Children))
	for _, child := range node.Children {
		if child.Visible {
			visible = append(visible, child)
		}
	}
	for i, child := range visible {
		isLast := i == len(visible)-1
		prefix := ui.BuildTreePrefix(depth, isLast, parentIsLast)
		*lines = append(*lines, fmt.Sprintf("%s%s %s", prefix, shortName(child), stateTag(child.State)))
		collectTreeLines(lines, child, depth+1, append(parentIsLast, isLast))
	}
}

// RenderSummary prints per-state leaf counts for the subtree.
func (c *Console) RenderSummary(root *tree.TestObject) {
	counts := root.StateCounts()
	total := 0
	for _, n := range counts {
		total += n
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle(fmt.Sprintf("%s: %s", root.Label(), root.State))
	t.AppendHeader(table.Row{"State", "Tests"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Tests", Align: text.AlignRight},
	})
	for _, state := range types.AllTestStates() {
		t.AppendRow(table.Row{string(state), counts[state]})
	}
	t.AppendFooter(table.Row{"TOTAL", total})

	switch root.State {
	case types.TestStatePass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.TestStateFail, types.TestStateError:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	}
	t.Render()
}

// shortName returns the last segment of the node's dotted name.
func shortName(node *tree.TestObject) string {
	name := node.Label()
	if idx := strings.LastIndex(name, "."); idx != -1 {
		return name[idx+1:]
	}
	return name
}

func stateTag(state types.TestState) string {
	switch state {
	case types.TestStatePass:
		return "✓ pass"
	case types.TestStateFail:
		return "✗ fail"
	case types.TestStateError:
		return "! error"
	case types.TestStateRunning:
		return "~ running"
	default:
		return "· unstarted"
	}
}
