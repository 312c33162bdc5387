package planner

import "fmt"

// InvalidOperatorError reports a filter key whose operator suffix is not in
// the operator table, or an operator applied to an attribute kind that
// cannot support it.
type InvalidOperatorError struct {
	Token  string
	Key    string
	Reason string
}

func (e *InvalidOperatorError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("operator %q: %s", e.Token, e.Reason)
	}
	return fmt.Sprintf("unrecognized filter operator %q in key %q", e.Token, e.Key)
}

// OperandArityError reports an operand whose shape does not match what the
// operator requires.
type OperandArityError struct {
	Operator string
	Want     string
	Got      interface{}
}

func (e *OperandArityError) Error() string {
	return fmt.Sprintf("operator %q requires %s, got %T", e.Operator, e.Want, e.Got)
}

// UnknownRelationError reports an eager-load key that does not name a
// relationship on the model it was applied to.
type UnknownRelationError struct {
	Relation string
	Model    string
}

func (e *UnknownRelationError) Error() string {
	return fmt.Sprintf("unknown relationship %q on model %s", e.Relation, e.Model)
}

// UnsupportedStrategyError reports an eager-load strategy that is either
// unrecognized or incompatible with the relationship it was requested for.
type UnsupportedStrategyError struct {
	Strategy string
	Relation string
	Reason   string
}

func (e *UnsupportedStrategyError) Error() string {
	return fmt.Sprintf("strategy %q on relationship %q: %s", e.Strategy, e.Relation, e.Reason)
}

// PaginationConflictError reports a query that combines limit or offset with
// a join-strategy eager load on a to-many relationship. The joined child
// rows would make LIMIT count child rows instead of parent records.
type PaginationConflictError struct {
	Relation string
	Limit    int
	Offset   int
}

func (e *PaginationConflictError) Error() string {
	return fmt.Sprintf("limit/offset cannot combine with a joined to-many eager load on %q; use a batched strategy", e.Relation)
}

// LimitExceededError reports a plan that exceeds a configured size bound.
type LimitExceededError struct {
	Limit  string
	Max    int
	Actual int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("query exceeds %s: %d > %d", e.Limit, e.Actual, e.Max)
}
