package tree

// Display is the capability through which tree mutations are reflected into
// the rendering layer. Every call is the immediate, synchronous effect of the
// index operation that caused it; implementations must not assume any
// batching or reordering.
type Display interface {
	// CreateElement is called exactly once per node, when the node is created.
	CreateElement(node *TestObject)
	// SetRootElement announces the root node, once, at index construction.
	SetRootElement(node *TestObject)
	// AddChildElement attaches child under parent at the given position in the
	// parent's insertion order.
	AddChildElement(parent, child *TestObject, position int)
	// UpdateVisibility is called whenever a node's visibility is recomputed.
	UpdateVisibility(node *TestObject)
	// UpdateDisplayedState is called whenever a node's state is written.
	UpdateDisplayedState(node *TestObject)
}

// NoopDisplay discards all display updates. It is the default when no
// rendering layer is attached, and keeps tests quiet.
type NoopDisplay struct{}

func (NoopDisplay) CreateElement(*TestObject)                     {}
func (NoopDisplay) SetRootElement(*TestObject)                    {}
func (NoopDisplay) AddChildElement(*TestObject, *TestObject, int) {}
func (NoopDisplay) UpdateVisibility(*TestObject)                  {}
func (NoopDisplay) UpdateDisplayedState(*TestObject)              {}
