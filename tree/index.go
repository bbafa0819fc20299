package tree

import (
	"strings"
	"sync"

	"github.com/ethereum-optimism/infra/op-dashboard/types"
	"github.com/ethereum/go-ethereum/log"
)

// DefaultRootLabel is the display label used for the root node when no other
// label is configured.
const DefaultRootLabel = "All tests"

// RunStarter is invoked when a run is requested for a node; it is expected to
// kick off a result updater for the given fullname.
type RunStarter func(fullname string)

// Config contains index configuration.
type Config struct {
	// RootName is the dotted name of the configured root test object. It may
	// be empty, in which case every resolved name is relative to the top.
	RootName string
	// RootLabel overrides the display label of the root node.
	RootLabel string
	// VisibleStates is the initial set of states considered interesting for
	// filtering. Empty means every state is interesting.
	VisibleStates []types.TestState
	// Display receives state and visibility changes. Defaults to NoopDisplay.
	Display Display
	// StartRun is called by Run after the target subtree is marked running.
	StartRun RunStarter
	Log      log.Logger
}

// TestIndex is the registry and factory over the status tree. It resolves
// dotted names to nodes, creating missing ancestors, and owns the global
// visibility filter. All mutations of the shared tree go through the index;
// its operations are safe for use from concurrently polling updaters.
type TestIndex struct {
	mu sync.Mutex

	root          *TestObject
	nodes         map[string]*TestObject
	visibleStates map[types.TestState]bool

	rootName  string
	rootLabel string
	display   Display
	startRun  RunStarter
	log       log.Logger
}

// NewTestIndex creates an index with its root node already registered with
// the display.
func NewTestIndex(cfg Config) *TestIndex {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.Display == nil {
		cfg.Display = NoopDisplay{}
	}
	if cfg.RootLabel == "" {
		cfg.RootLabel = DefaultRootLabel
	}

	ix := &TestIndex{
		nodes:         make(map[string]*TestObject),
		visibleStates: make(map[types.TestState]bool),
		rootName:      cfg.RootName,
		rootLabel:     cfg.RootLabel,
		display:       cfg.Display,
		startRun:      cfg.StartRun,
		log:           cfg.Log,
	}
	if len(cfg.VisibleStates) == 0 {
		cfg.VisibleStates = types.AllTestStates()
	}
	for _, s := range cfg.VisibleStates {
		ix.visibleStates[s] = true
	}

	ix.root = &TestObject{
		Fullname: cfg.RootName,
		State:    types.TestStateUnstarted,
		Visible:  true,
		index:    ix,
	}
	ix.nodes[cfg.RootName] = ix.root
	ix.display.CreateElement(ix.root)
	ix.display.SetRootElement(ix.root)
	return ix
}

// Root returns the root node.
func (ix *TestIndex) Root() *TestObject {
	return ix.root
}

// Get looks up an existing node without creating anything.
func (ix *TestIndex) Get(fullname string) (*TestObject, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	node, ok := ix.nodes[fullname]
	return node, ok
}

// GetOrAdd resolves a dotted name to its node, creating the node and any
// missing ancestors in root-to-leaf order. Each created node is attached as
// the last child of its parent and registered with the display immediately.
// Resolution is idempotent: an existing name is returned unchanged and
// creates nothing.
func (ix *TestIndex) GetOrAdd(fullname string) *TestObject {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.getOrAddLocked(fullname)
}

func (ix *TestIndex) getOrAddLocked(fullname string) *TestObject {
	if node, ok := ix.nodes[fullname]; ok {
		return node
	}

	// Split into segments relative to the configured root name.
	rel := fullname
	if ix.rootName != "" {
		rel = strings.TrimPrefix(fullname, ix.rootName+".")
	}

	current := ix.root
	prefix := ix.rootName
	for _, segment := range strings.Split(rel, ".") {
		name := segment
		if prefix != "" {
			name = prefix + "." + segment
		}
		node, ok := ix.nodes[name]
		if !ok {
			node = &TestObject{
				Fullname: name,
				Parent:   current,
				State:    types.TestStateUnstarted,
				Visible:  true,
				index:    ix,
			}
			current.Children = append(current.Children, node)
			ix.nodes[name] = node
			ix.display.CreateElement(node)
			ix.display.AddChildElement(current, node, len(current.Children)-1)
		}
		current = node
		prefix = name
	}
	// A name given relative to the root resolves to its qualified node;
	// register the queried spelling too so later lookups hit directly
	// instead of re-walking.
	ix.nodes[fullname] = current
	return current
}

// AddError resolves or creates the node for fullname, records the message and
// marks the node's subtree with state. Ancestors pick the change up through
// aggregation.
func (ix *TestIndex) AddError(fullname, message string, state types.TestState) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.addErrorLocked(fullname, message, state)
}

// AddErrors applies AddError for every (fullname, message) pair. This is the
// bulk ingestion path for backend-reported load failures.
func (ix *TestIndex) AddErrors(errs []types.NodeMessage, state types.TestState) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, e := range errs {
		ix.addErrorLocked(e.Fullname, e.Message, state)
	}
}

func (ix *TestIndex) addErrorLocked(fullname, message string, state types.TestState) {
	node := ix.getOrAddLocked(fullname)
	node.AddMessage(message)
	node.SetState(state)
	ix.log.Debug("Recorded error", "fullname", fullname, "state", state)
}

// ApplyUnitResult ingests one unit result: methods named in Errors are set to
// Error with their message, methods named in Failures to Fail, and every
// other method of the unit (per unitMethods) is presumed to have passed. The
// unit's free-text output, if any, is recorded as a message on the unit node.
// Leaf states are written directly and a single aggregation pass runs at the
// end, so a large unit does not pay per-method ripple costs.
func (ix *TestIndex) ApplyUnitResult(result types.UnitResult, unitMethods []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, e := range result.LoadErrors {
		ix.addErrorLocked(e.Fullname, e.Message, types.TestStateError)
	}

	resolved := make(map[string]types.TestState)
	for _, e := range result.Errors {
		node := ix.getOrAddLocked(e.Fullname)
		node.AddMessage(e.Message)
		node.setStateDirect(types.TestStateError)
		resolved[e.Fullname] = types.TestStateError
	}
	for _, f := range result.Failures {
		node := ix.getOrAddLocked(f.Fullname)
		node.AddMessage(f.Message)
		node.setStateDirect(types.TestStateFail)
		resolved[f.Fullname] = types.TestStateFail
	}
	for _, method := range unitMethods {
		if _, ok := resolved[method]; ok {
			continue
		}
		ix.getOrAddLocked(method).setStateDirect(types.TestStatePass)
	}

	unit := ix.getOrAddLocked(result.Fullname)
	if result.Output != "" {
		unit.AddMessage(result.Output)
	}
	if len(resolved) == 0 && len(unitMethods) == 0 && len(result.LoadErrors) == 0 {
		// Nothing below the unit was reported; the unit itself passed.
		unit.setStateDirect(types.TestStatePass)
	}

	// The direct writes may sit arbitrarily deep below the unit (methods live
	// under their class node), so bring the whole subtree to a consistent
	// aggregate bottom-up before the ancestor chain picks the change up.
	unit.recomputeSubtreeStates()
	unit.UpdateVisibility()
	if unit.Parent != nil {
		unit.Parent.RecomputeState()
		unit.Parent.RecomputeVisibility(true)
	}
}

// Run marks the subtree of fullname as running and asks the configured run
// starter to drive a batch for it.
func (ix *TestIndex) Run(fullname string) {
	ix.mu.Lock()
	node := ix.getOrAddLocked(fullname)
	node.SetState(types.TestStateRunning)
	starter := ix.startRun
	ix.mu.Unlock()

	if starter != nil {
		starter(node.Fullname)
	}
}

// Populate fills the tree from a backend method listing and ingests any load
// errors, then refreshes visibility across the whole tree. Used once at
// startup, before any run.
func (ix *TestIndex) Populate(list *types.MethodList) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, name := range list.MethodNames {
		ix.getOrAddLocked(name)
	}
	for _, e := range list.LoadErrors {
		ix.addErrorLocked(e.Fullname, e.Message, types.TestStateError)
	}
	ix.root.UpdateVisibility()
	ix.log.Debug("Populated test index", "methods", len(list.MethodNames), "loadErrors", len(list.LoadErrors))
}

// SetVisibleStates replaces the visibility filter and refreshes the entire
// tree so exactly the nodes satisfying the filter predicate remain visible.
func (ix *TestIndex) SetVisibleStates(states []types.TestState) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.visibleStates = make(map[types.TestState]bool, len(states))
	for _, s := range states {
		ix.visibleStates[s] = true
	}
	ix.root.UpdateVisibility()
}

// UpdateVisibility refreshes visibility across the whole tree.
func (ix *TestIndex) UpdateVisibility() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.root.UpdateVisibility()
}

// Output assembles the inspection text for fullname, if the node exists.
func (ix *TestIndex) Output(fullname string) (string, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	node, ok := ix.nodes[fullname]
	if !ok {
		return "", false
	}
	return node.Output(), true
}
