package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateStates(t *testing.T) {
	tests := []struct {
		name   string
		states []TestState
		want   TestState
	}{
		{
			name:   "empty set aggregates to unstarted",
			states: nil,
			want:   TestStateUnstarted,
		},
		{
			name:   "running outranks fail",
			states: []TestState{TestStatePass, TestStateFail, TestStateRunning},
			want:   TestStateRunning,
		},
		{
			name:   "error outranks fail",
			states: []TestState{TestStatePass, TestStateFail, TestStateError},
			want:   TestStateError,
		},
		{
			name:   "running outranks error",
			states: []TestState{TestStateError, TestStateRunning},
			want:   TestStateRunning,
		},
		{
			name:   "fail outranks pass",
			states: []TestState{TestStatePass, TestStateFail, TestStatePass},
			want:   TestStateFail,
		},
		{
			name:   "pass outranks unstarted",
			states: []TestState{TestStateUnstarted, TestStatePass},
			want:   TestStatePass,
		},
		{
			name:   "all passing",
			states: []TestState{TestStatePass, TestStatePass},
			want:   TestStatePass,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AggregateStates(tt.states))
		})
	}
}

// The precedence order is a documented contract; enumerate it completely so a
// reordering shows up as a test failure rather than a silent display change.
func TestStatePrecedenceTotalOrder(t *testing.T) {
	order := AllTestStates()
	require.Len(t, order, 5)

	for i := 0; i < len(order)-1; i++ {
		assert.True(t, order[i].Outranks(order[i+1]),
			"%s should outrank %s", order[i], order[i+1])
	}
	assert.False(t, TestStateUnstarted.Outranks(TestStateUnstarted))
}

func TestParseTestState(t *testing.T) {
	for _, s := range AllTestStates() {
		got, ok := ParseTestState(string(s))
		require.True(t, ok)
		assert.Equal(t, s, got)
	}

	_, ok := ParseTestState("bogus")
	assert.False(t, ok)
}
