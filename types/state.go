package types

// TestState represents the possible states of a test object
type TestState string

const (
	TestStateUnstarted TestState = "unstarted"
	TestStateRunning   TestState = "running"
	TestStatePass      TestState = "pass"
	TestStateFail      TestState = "fail"
	TestStateError     TestState = "error"
)

// statePrecedence orders states for aggregation. When a node has children in
// several states, the highest-precedence state present wins. Running outranks
// Error: while any descendant is still executing the ancestor's result is not
// final, so the dashboard keeps signaling activity; the terminal severity
// order (Error > Fail > Pass) applies once nothing is running.
var statePrecedence = map[TestState]int{
	TestStateRunning:   4,
	TestStateError:     3,
	TestStateFail:      2,
	TestStatePass:      1,
	TestStateUnstarted: 0,
}

// Precedence returns the aggregation rank of a state. Unknown states rank
// lowest, same as Unstarted.
func (s TestState) Precedence() int {
	return statePrecedence[s]
}

// Outranks reports whether s takes priority over other during aggregation.
func (s TestState) Outranks(other TestState) bool {
	return statePrecedence[s] > statePrecedence[other]
}

// AllTestStates lists every valid state, highest aggregation precedence first.
func AllTestStates() []TestState {
	return []TestState{
		TestStateRunning,
		TestStateError,
		TestStateFail,
		TestStatePass,
		TestStateUnstarted,
	}
}

// ParseTestState converts a string into a TestState, reporting whether the
// input named a valid state.
func ParseTestState(s string) (TestState, bool) {
	switch TestState(s) {
	case TestStateUnstarted, TestStateRunning, TestStatePass, TestStateFail, TestStateError:
		return TestState(s), true
	}
	return "", false
}

// AggregateStates computes the aggregate of a set of child states: the
// highest-precedence state present. An empty input aggregates to Unstarted.
func AggregateStates(states []TestState) TestState {
	agg := TestStateUnstarted
	for _, s := range states {
		if s.Outranks(agg) {
			agg = s
		}
	}
	return agg
}
