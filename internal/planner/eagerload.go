package planner

import (
	"fmt"

	"smartquery/internal/schema"
)

// Strategy names how an eager-loaded relationship is fetched.
type Strategy string

const (
	// StrategyJoin selects the target's columns through a LEFT JOIN on the
	// parent query.
	StrategyJoin Strategy = "join"
	// StrategyBatchedSubquery issues one follow-up query that windows child
	// rows per parent with ROW_NUMBER.
	StrategyBatchedSubquery Strategy = "batched-subquery"
	// StrategyBatchedSelect issues one follow-up IN query and groups child
	// rows by parent in memory.
	StrategyBatchedSelect Strategy = "batched-select"
)

// ParseStrategy maps a strategy token to its Strategy value.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case StrategyJoin, StrategyBatchedSubquery, StrategyBatchedSelect:
		return Strategy(s), true
	}
	return "", false
}

// Reserved option keys in nested load mappings. Every other key names a
// child relationship.
const (
	loadKeyStrategy = "$strategy"
	loadKeyFilter   = "$filter"
	loadKeySort     = "$sort"
	loadKeyLimit    = "$limit"
	loadKeyOffset   = "$offset"
)

// EagerNode is one planned eager-load edge.
type EagerNode struct {
	Relation *schema.Relation
	Strategy Strategy
	Filter   map[string]interface{}
	Sort     []string
	Limit    int
	Offset   int
	Children []*EagerNode
}

// PlanEagerLoad converts a load mapping into a strategy-annotated tree.
// Each relation key maps to nil for defaults, a strategy token, or a
// nested mapping that may carry reserved "$" options alongside child
// relation keys. Nodes come out in sorted key order.
func PlanEagerLoad(model *schema.Model, load map[string]interface{}) ([]*EagerNode, error) {
	return planEagerLevel(model, load, false)
}

func planEagerLevel(model *schema.Model, load map[string]interface{}, underBatched bool) ([]*EagerNode, error) {
	if len(load) == 0 {
		return nil, nil
	}
	nodes := make([]*EagerNode, 0, len(load))
	for _, name := range sortedKeys(load) {
		rel, ok := model.Relation(name)
		if !ok {
			return nil, &UnknownRelationError{Relation: name, Model: model.Name}
		}
		node, err := buildEagerNode(rel, load[name], underBatched)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func buildEagerNode(rel *schema.Relation, value interface{}, underBatched bool) (*EagerNode, error) {
	node := &EagerNode{Relation: rel}
	var children map[string]interface{}

	switch v := value.(type) {
	case nil:
	case string:
		strategy, ok := ParseStrategy(v)
		if !ok {
			return nil, &UnsupportedStrategyError{Strategy: v, Relation: rel.Name, Reason: "unrecognized strategy"}
		}
		node.Strategy = strategy
	case map[string]interface{}:
		var err error
		children, err = applyLoadOptions(node, rel, v)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("load entry for %q must be nil, a strategy token, or a nested mapping, got %T", rel.Name, value)
	}

	if node.Strategy == "" {
		windowed := len(children) > 0 || node.Limit != 0 || node.Offset != 0
		node.Strategy = defaultStrategy(rel, windowed)
	}
	if node.Strategy == StrategyJoin {
		if rel.ToMany() && underBatched {
			return nil, &UnsupportedStrategyError{
				Strategy: string(node.Strategy),
				Relation: rel.Name,
				Reason:   "a joined to-many load cannot nest beneath a batched load",
			}
		}
		if node.Filter != nil || len(node.Sort) > 0 {
			return nil, &UnsupportedStrategyError{
				Strategy: string(node.Strategy),
				Relation: rel.Name,
				Reason:   "per-relation filter and sort require a batched strategy",
			}
		}
	}
	if (node.Limit != 0 || node.Offset != 0) && node.Strategy != StrategyBatchedSubquery {
		return nil, &UnsupportedStrategyError{
			Strategy: string(node.Strategy),
			Relation: rel.Name,
			Reason:   "per-relation limit and offset require the batched-subquery strategy",
		}
	}

	childUnderBatched := underBatched || node.Strategy != StrategyJoin
	var err error
	node.Children, err = planEagerLevel(rel.Target, children, childUnderBatched)
	if err != nil {
		return nil, err
	}
	return node, nil
}

// applyLoadOptions splits a nested load mapping into reserved options set
// on the node and the remaining child relation entries.
func applyLoadOptions(node *EagerNode, rel *schema.Relation, m map[string]interface{}) (map[string]interface{}, error) {
	children := make(map[string]interface{})
	for key, raw := range m {
		switch key {
		case loadKeyStrategy:
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%s for %q must be a string, got %T", loadKeyStrategy, rel.Name, raw)
			}
			strategy, ok := ParseStrategy(s)
			if !ok {
				return nil, &UnsupportedStrategyError{Strategy: s, Relation: rel.Name, Reason: "unrecognized strategy"}
			}
			node.Strategy = strategy
		case loadKeyFilter:
			f, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%s for %q must be a filter mapping, got %T", loadKeyFilter, rel.Name, raw)
			}
			node.Filter = f
		case loadKeySort:
			tokens, err := sortTokenList(raw)
			if err != nil {
				return nil, fmt.Errorf("%s for %q: %w", loadKeySort, rel.Name, err)
			}
			node.Sort = tokens
		case loadKeyLimit:
			n, err := intOption(raw)
			if err != nil {
				return nil, fmt.Errorf("%s for %q: %w", loadKeyLimit, rel.Name, err)
			}
			node.Limit = n
		case loadKeyOffset:
			n, err := intOption(raw)
			if err != nil {
				return nil, fmt.Errorf("%s for %q: %w", loadKeyOffset, rel.Name, err)
			}
			node.Offset = n
		default:
			children[key] = raw
		}
	}
	return children, nil
}

// sortTokenList accepts a single sort token or a list of tokens.
func sortTokenList(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []interface{}:
		tokens := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("sort tokens must be strings, got %T", item)
			}
			tokens[i] = s
		}
		return tokens, nil
	}
	return nil, fmt.Errorf("expected a sort token or list of tokens, got %T", raw)
}

// intOption accepts the integer shapes JSON and config decoders produce.
func intOption(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	}
	return 0, fmt.Errorf("expected an integer, got %T", raw)
}

// defaultStrategy picks the fetch strategy when the caller does not
// override: to-one relations join, to-many leaves use one IN query, and
// to-many relations that nest further loads or window their children use
// the windowed subquery.
func defaultStrategy(rel *schema.Relation, windowed bool) Strategy {
	if !rel.ToMany() {
		return StrategyJoin
	}
	if windowed {
		return StrategyBatchedSubquery
	}
	return StrategyBatchedSelect
}
