package tree

import (
	"fmt"
	"strings"

	"github.com/ethereum-optimism/infra/op-dashboard/types"
)

// TestObject is a single node in the dotted test namespace hierarchy
// (package → module → class → method). Nodes are owned by a TestIndex and
// created through TestIndex.GetOrAdd; children keep their insertion order,
// which is load-bearing for display and for prefix diffing by peers.
type TestObject struct {
	Fullname string
	Parent   *TestObject
	Children []*TestObject

	// State is authoritative for leaves. For internal nodes it is the
	// aggregate of the children's states, except transiently between a direct
	// write and the next aggregation pass.
	State types.TestState

	// Visible is derived from State and the children's visibility.
	Visible bool

	// Messages accumulates per-node output and tracebacks, append-only.
	Messages []string

	index *TestIndex
}

// Label returns the name shown for this node. The root's fullname may be
// empty; it is displayed under the index's configured root label.
func (o *TestObject) Label() string {
	if o.Parent == nil {
		return o.index.rootLabel
	}
	return o.Fullname
}

// IsLeaf reports whether the node has no children.
func (o *TestObject) IsLeaf() bool {
	return len(o.Children) == 0
}

// ForEachContained visits the node and its entire subtree exactly once each.
// With postorder false the node is visited before its children (preorder);
// with postorder true each child subtree is fully visited left-to-right
// before the node itself.
func (o *TestObject) ForEachContained(visit func(*TestObject), postorder bool) {
	if !postorder {
		visit(o)
	}
	for _, child := range o.Children {
		child.ForEachContained(visit, postorder)
	}
	if postorder {
		visit(o)
	}
}

// RecomputeState recomputes this node's aggregate state from its direct
// children. A node with no children keeps its directly-assigned state. If the
// aggregate differs from the stored value the node is updated, its own
// visibility refreshed, and the recomputation ripples to the parent, so a
// single leaf change can reach the root.
func (o *TestObject) RecomputeState() {
	if len(o.Children) == 0 {
		return
	}
	agg := types.TestStateUnstarted
	for _, child := range o.Children {
		if child.State.Outranks(agg) {
			agg = child.State
		}
	}
	if agg == o.State {
		return
	}
	o.State = agg
	o.index.display.UpdateDisplayedState(o)
	o.recomputeOwnVisibility()
	if o.Parent != nil {
		o.Parent.RecomputeState()
	}
}

// SetState assigns state to this node and every node in its subtree (preorder
// cascade), refreshes the subtree's visibility, and re-aggregates the
// ancestor chain so nodes outside the subtree are only affected through
// aggregation. This is the operation used when a whole branch is kicked off or
// resolved at once.
func (o *TestObject) SetState(state types.TestState) {
	o.ForEachContained(func(n *TestObject) {
		n.State = state
		n.index.display.UpdateDisplayedState(n)
	}, false)
	o.UpdateVisibility()
	if o.Parent != nil {
		o.Parent.RecomputeState()
		o.Parent.RecomputeVisibility(true)
	}
}

// setStateDirect writes the node's state without cascading or recomputing
// anything. Batch ingestion uses it to apply many leaf updates before paying
// for a single aggregation pass; callers must request recomputation when they
// want ancestors refreshed.
func (o *TestObject) setStateDirect(state types.TestState) {
	o.State = state
	o.index.display.UpdateDisplayedState(o)
}

// recomputeSubtreeStates re-aggregates every internal node of the subtree in
// postorder, without touching anything above it. Batch ingestion runs it
// after a series of direct leaf writes so the intermediate nodes between the
// written leaves and the subtree root become consistent in one pass.
func (o *TestObject) recomputeSubtreeStates() {
	o.ForEachContained(func(n *TestObject) {
		if len(n.Children) == 0 {
			return
		}
		agg := types.TestStateUnstarted
		for _, child := range n.Children {
			if child.State.Outranks(agg) {
				agg = child.State
			}
		}
		if agg != n.State {
			n.State = agg
			n.index.display.UpdateDisplayedState(n)
		}
	}, true)
}

// AddMessage appends a message to the node's message ledger.
func (o *TestObject) AddMessage(message string) {
	o.Messages = append(o.Messages, message)
}

// RecomputeVisibility sets the node's visibility: visible iff its own state is
// in the index's visible-state filter or at least one direct child is
// currently visible. With propagateUp the same recomputation walks the parent
// chain to the root.
func (o *TestObject) RecomputeVisibility(propagateUp bool) {
	o.recomputeOwnVisibility()
	if propagateUp && o.Parent != nil {
		o.Parent.RecomputeVisibility(true)
	}
}

func (o *TestObject) recomputeOwnVisibility() {
	visible := o.index.visibleStates[o.State]
	if !visible {
		for _, child := range o.Children {
			if child.Visible {
				visible = true
				break
			}
		}
	}
	o.Visible = visible
	o.index.display.UpdateVisibility(o)
}

// UpdateVisibility refreshes the visibility of the node's entire subtree. The
// traversal is postorder so every node's visibility is derived after all of
// its descendants are current; nothing above the subtree is touched.
func (o *TestObject) UpdateVisibility() {
	o.ForEachContained(func(n *TestObject) {
		n.recomputeOwnVisibility()
	}, true)
}

// Output assembles the inspection text for this node: a header naming the
// node's current aggregate state, the node's subtree in preorder restricted
// to nodes with messages, then the chain of strict ancestors up to the root,
// each rendered if it has messages. This lets a failing subtree be inspected
// together with context from enclosing scopes without re-displaying sibling
// output.
func (o *TestObject) Output() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", o.State)

	o.ForEachContained(func(n *TestObject) {
		writeNodeMessages(&b, n)
	}, false)

	for ancestor := o.Parent; ancestor != nil; ancestor = ancestor.Parent {
		writeNodeMessages(&b, ancestor)
	}
	return b.String()
}

func writeNodeMessages(b *strings.Builder, n *TestObject) {
	if len(n.Messages) == 0 {
		return
	}
	fmt.Fprintf(b, "In %s:\n", n.Label())
	for _, msg := range n.Messages {
		b.WriteString(msg)
		b.WriteString("\n")
	}
}

// StateCounts tallies the leaf states under (and including) this node.
func (o *TestObject) StateCounts() map[types.TestState]int {
	counts := make(map[types.TestState]int)
	o.ForEachContained(func(n *TestObject) {
		if n.IsLeaf() {
			counts[n.State]++
		}
	}, false)
	return counts
}
