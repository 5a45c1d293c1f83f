package ai

// Status is what a node reports after one tick.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusRunning
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "running"
	}
}

// Node is a single node in a behavior tree.
type Node interface {
	Tick(ctx *Context) Status
}

// Selector returns the first child result that is not a failure.
type Selector struct {
	Children []Node
}

func (s *Selector) Tick(ctx *Context) Status {
	for _, c := range s.Children {
		if st := c.Tick(ctx); st != StatusFailure {
			return st
		}
	}
	return StatusFailure
}

// Sequence runs children in order and stops at the first one that does not succeed.
type Sequence struct {
	Children []Node
}

func (s *Sequence) Tick(ctx *Context) Status {
	for _, c := range s.Children {
		if st := c.Tick(ctx); st != StatusSuccess {
			return st
		}
	}
	return StatusSuccess
}

// ConditionNode maps a predicate onto success or failure.
type ConditionNode struct {
	Name string
	Fn   func(*Context) bool
}

func (cn *ConditionNode) Tick(ctx *Context) Status {
	if cn.Fn(ctx) {
		return StatusSuccess
	}
	return StatusFailure
}

// ActionNode runs Fn and reports its status.
type ActionNode struct {
	Name string
	Fn   func(*Context) Status
}

func (an *ActionNode) Tick(ctx *Context) Status {
	st := an.Fn(ctx)
	if st != StatusFailure && an.Name != "" {
		ctx.Trace = append(ctx.Trace, an.Name)
	}
	return st
}

// Inverter swaps success and failure. Running passes through.
type Inverter struct {
	Child Node
}

func (i *Inverter) Tick(ctx *Context) Status {
	switch i.Child.Tick(ctx) {
	case StatusSuccess:
		return StatusFailure
	case StatusFailure:
		return StatusSuccess
	default:
		return StatusRunning
	}
}

// BehaviorTree wraps the root node.
type BehaviorTree struct {
	Root Node
}

// Tick runs one frame of the tree. ctx.Trace is reset first and afterwards
// holds the names of the actions that ran.
func (bt *BehaviorTree) Tick(ctx *Context) Status {
	ctx.Trace = ctx.Trace[:0]
	if bt.Root == nil {
		return StatusFailure
	}
	return bt.Root.Tick(ctx)
}
