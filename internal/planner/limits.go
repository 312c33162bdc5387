package planner

// Limits bounds resolved plan size. Zero values disable each bound.
type Limits struct {
	// MaxEagerDepth caps relationship nesting in the eager-load tree.
	MaxEagerDepth int
	// MaxJoins caps the total number of joins across the plan and its
	// batch queries.
	MaxJoins int
}

// checkDepth enforces MaxEagerDepth against an eager-load tree.
func (l Limits) checkDepth(nodes []*EagerNode) error {
	if l.MaxEagerDepth <= 0 {
		return nil
	}
	if d := eagerDepth(nodes); d > l.MaxEagerDepth {
		return &LimitExceededError{Limit: "max_eager_depth", Max: l.MaxEagerDepth, Actual: d}
	}
	return nil
}

// checkJoins enforces MaxJoins against an assembled plan.
func (l Limits) checkJoins(plan *Plan) error {
	if l.MaxJoins <= 0 {
		return nil
	}
	if n := totalJoins(plan); n > l.MaxJoins {
		return &LimitExceededError{Limit: "max_joins", Max: l.MaxJoins, Actual: n}
	}
	return nil
}

func eagerDepth(nodes []*EagerNode) int {
	depth := 0
	for _, node := range nodes {
		if d := 1 + eagerDepth(node.Children); d > depth {
			depth = d
		}
	}
	return depth
}
