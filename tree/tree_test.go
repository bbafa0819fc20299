package tree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-dashboard/types"
)

func newTestIndex(t *testing.T, visible ...types.TestState) *TestIndex {
	t.Helper()
	return NewTestIndex(Config{VisibleStates: visible})
}

func TestForEachContainedOrder(t *testing.T) {
	ix := newTestIndex(t)
	ix.GetOrAdd("a.x")
	ix.GetOrAdd("a.y")
	ix.GetOrAdd("b")

	var preorder []string
	ix.Root().ForEachContained(func(n *TestObject) {
		preorder = append(preorder, n.Fullname)
	}, false)
	assert.Equal(t, []string{"", "a", "a.x", "a.y", "b"}, preorder)

	var postorder []string
	ix.Root().ForEachContained(func(n *TestObject) {
		postorder = append(postorder, n.Fullname)
	}, true)
	assert.Equal(t, []string{"a.x", "a.y", "a", "b", ""}, postorder)
}

func TestChildrenKeepInsertionOrder(t *testing.T) {
	ix := newTestIndex(t)
	// Deliberately out of alphabetical order; first appearance wins.
	ix.GetOrAdd("pkg.zeta")
	ix.GetOrAdd("pkg.alpha")
	ix.GetOrAdd("pkg.mid")
	ix.GetOrAdd("pkg.alpha.sub")

	pkg, ok := ix.Get("pkg")
	require.True(t, ok)
	var names []string
	for _, child := range pkg.Children {
		names = append(names, child.Fullname)
	}
	assert.Equal(t, []string{"pkg.zeta", "pkg.alpha", "pkg.mid"}, names)
}

func TestAggregatePrecedence(t *testing.T) {
	tests := []struct {
		name   string
		states []types.TestState
		want   types.TestState
	}{
		{
			name:   "running beats fail",
			states: []types.TestState{types.TestStatePass, types.TestStateFail, types.TestStateRunning},
			want:   types.TestStateRunning,
		},
		{
			name:   "error beats fail",
			states: []types.TestState{types.TestStatePass, types.TestStateFail, types.TestStateError},
			want:   types.TestStateError,
		},
		{
			name:   "running beats error",
			states: []types.TestState{types.TestStateError, types.TestStateRunning},
			want:   types.TestStateRunning,
		},
		{
			name:   "uniform pass",
			states: []types.TestState{types.TestStatePass, types.TestStatePass},
			want:   types.TestStatePass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := newTestIndex(t)
			parent := ix.GetOrAdd("p")
			for i, s := range tt.states {
				child := ix.GetOrAdd(fmt.Sprintf("p.c%d", i))
				child.SetState(s)
			}
			assert.Equal(t, tt.want, parent.State)
		})
	}
}

func TestLeafStateNotOverwrittenByAggregation(t *testing.T) {
	ix := newTestIndex(t)
	leaf := ix.GetOrAdd("p.m")
	leaf.SetState(types.TestStateFail)

	leaf.RecomputeState()
	assert.Equal(t, types.TestStateFail, leaf.State)
}

func TestSetStateCascadesThroughSubtree(t *testing.T) {
	ix := newTestIndex(t)
	ix.GetOrAdd("p.a.m1")
	ix.GetOrAdd("p.a.m2")
	ix.GetOrAdd("p.b.m1")
	other := ix.GetOrAdd("q.m")
	other.SetState(types.TestStatePass)

	branch := ix.GetOrAdd("p.a")
	branch.SetState(types.TestStateRunning)

	branch.ForEachContained(func(n *TestObject) {
		assert.Equal(t, types.TestStateRunning, n.State, "subtree node %q", n.Fullname)
	}, false)

	// Outside the subtree only aggregation applies.
	pb, _ := ix.Get("p.b")
	assert.Equal(t, types.TestStateUnstarted, pb.State)
	assert.Equal(t, types.TestStatePass, other.State)

	// Ancestors re-aggregate: Running ripples to root.
	p, _ := ix.Get("p")
	assert.Equal(t, types.TestStateRunning, p.State)
	assert.Equal(t, types.TestStateRunning, ix.Root().State)
}

func TestRecomputeStateRipplesToRoot(t *testing.T) {
	ix := newTestIndex(t)
	m1 := ix.GetOrAdd("a.b.m1")
	ix.GetOrAdd("a.b.m2").SetState(types.TestStatePass)
	m1.SetState(types.TestStatePass)
	require.Equal(t, types.TestStatePass, ix.Root().State)

	m1.SetState(types.TestStateError)
	assert.Equal(t, types.TestStateError, ix.Root().State)

	b, _ := ix.Get("a.b")
	assert.Equal(t, types.TestStateError, b.State)
}

func TestVisibilityFollowsFilter(t *testing.T) {
	ix := newTestIndex(t, types.TestStateFail, types.TestStateError)
	pass := ix.GetOrAdd("p.pass")
	fail := ix.GetOrAdd("p.fail")
	pass.SetState(types.TestStatePass)
	fail.SetState(types.TestStateFail)
	ix.UpdateVisibility()

	assert.False(t, pass.Visible)
	assert.True(t, fail.Visible)

	// Parent is visible because a descendant is, even though its own
	// aggregate (Fail) is in the filter too; lone-pass parents are not.
	p, _ := ix.Get("p")
	assert.True(t, p.Visible)

	// Narrow the filter to Error only: everything disappears.
	ix.SetVisibleStates([]types.TestState{types.TestStateError})
	assert.False(t, pass.Visible)
	assert.False(t, fail.Visible)
	assert.False(t, p.Visible)
	assert.False(t, ix.Root().Visible)
}

func TestVisibilityPredicateAcrossTree(t *testing.T) {
	ix := newTestIndex(t, types.TestStateError)
	ix.GetOrAdd("a.m1").SetState(types.TestStatePass)
	ix.GetOrAdd("a.m2").SetState(types.TestStateError)
	ix.GetOrAdd("b.m1").SetState(types.TestStatePass)
	ix.UpdateVisibility()

	// A node is visible iff its state is in the filter or some descendant's is.
	ix.Root().ForEachContained(func(n *TestObject) {
		wantVisible := false
		n.ForEachContained(func(d *TestObject) {
			if d.State == types.TestStateError {
				wantVisible = true
			}
		}, false)
		assert.Equal(t, wantVisible, n.Visible, "node %q", n.Fullname)
	}, false)
}

func TestSetStateLeavesSubtreeVisibilityConsistent(t *testing.T) {
	ix := newTestIndex(t, types.TestStateRunning)
	branch := ix.GetOrAdd("p")
	ix.GetOrAdd("p.m1")
	ix.GetOrAdd("p.m2")

	branch.SetState(types.TestStateRunning)
	branch.ForEachContained(func(n *TestObject) {
		assert.True(t, n.Visible, "node %q", n.Fullname)
	}, false)

	branch.SetState(types.TestStatePass)
	branch.ForEachContained(func(n *TestObject) {
		assert.False(t, n.Visible, "node %q", n.Fullname)
	}, false)
	// The now-invisible branch no longer props up its ancestors either.
	assert.False(t, ix.Root().Visible)
}

func TestOutputAssembly(t *testing.T) {
	ix := newTestIndex(t)
	node := ix.GetOrAdd("pkg.mod")
	desc := ix.GetOrAdd("pkg.mod.cls.m")
	node.AddMessage("m1")
	desc.AddMessage("m2")
	ix.Root().AddMessage("m3")
	desc.SetState(types.TestStateFail)

	out := node.Output()
	want := "Status: fail\n" +
		"In pkg.mod:\nm1\n" +
		"In pkg.mod.cls.m:\nm2\n" +
		"In All tests:\nm3\n"
	assert.Equal(t, want, out)

	// Ancestors with no messages are skipped entirely ("pkg" here).
	assert.NotContains(t, out, "In pkg:")
}

func TestOutputHeaderNamesAggregateState(t *testing.T) {
	ix := newTestIndex(t)
	ix.GetOrAdd("p.m1").SetState(types.TestStatePass)
	ix.GetOrAdd("p.m2").SetState(types.TestStateError)
	p, _ := ix.Get("p")
	assert.Equal(t, "Status: error\n", p.Output())
}

func TestStateCounts(t *testing.T) {
	ix := newTestIndex(t)
	ix.GetOrAdd("p.m1").SetState(types.TestStatePass)
	ix.GetOrAdd("p.m2").SetState(types.TestStateFail)
	ix.GetOrAdd("p.m3").SetState(types.TestStatePass)

	counts := ix.Root().StateCounts()
	assert.Equal(t, 2, counts[types.TestStatePass])
	assert.Equal(t, 1, counts[types.TestStateFail])
	assert.Equal(t, 0, counts[types.TestStateError])
}
