package planner

import (
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"smartquery/internal/attrpath"
	"smartquery/internal/schema"
)

// Reserved combinator keys in filter mappings.
const (
	combinatorAnd = "AND"
	combinatorOr  = "OR"
)

// FilterOutput is the compiled form of a filter mapping: a predicate tree
// and the joins its relationship paths require.
type FilterOutput struct {
	Predicate sq.Sqlizer
	Joins     *JoinSet
}

// CompileFilters compiles a filter mapping against the model. Keys are
// processed in sorted order so the same mapping always renders the same
// SQL. A nil or empty mapping yields a nil predicate.
func CompileFilters(model *schema.Model, filters map[string]interface{}) (*FilterOutput, error) {
	joins := NewJoinSet(model)
	pred, err := compileFilterMap(model, filters, joins)
	if err != nil {
		return nil, err
	}
	return &FilterOutput{Predicate: pred, Joins: joins}, nil
}

func compileFilterMap(model *schema.Model, filters map[string]interface{}, joins *JoinSet) (sq.Sqlizer, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	conds := make([]sq.Sqlizer, 0, len(filters))
	for _, key := range sortedKeys(filters) {
		value := filters[key]
		switch key {
		case combinatorAnd, combinatorOr:
			groups, err := filterGroups(key, value)
			if err != nil {
				return nil, err
			}
			nested := make([]sq.Sqlizer, 0, len(groups))
			for _, group := range groups {
				cond, err := compileFilterMap(model, group, joins)
				if err != nil {
					return nil, err
				}
				if cond != nil {
					nested = append(nested, cond)
				}
			}
			if len(nested) == 0 {
				continue
			}
			if key == combinatorAnd {
				conds = append(conds, sq.And(nested))
			} else {
				conds = append(conds, sq.Or(nested))
			}
		default:
			pathText, token, err := SplitFilterKey(key)
			if err != nil {
				return nil, err
			}
			path, err := attrpath.Resolve(model, pathText)
			if err != nil {
				return nil, err
			}
			joins.AddPath(path)
			cond, err := buildOperatorCondition(token, columnExpr(joins, path), path, value)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
		}
	}
	switch len(conds) {
	case 0:
		return nil, nil
	case 1:
		return conds[0], nil
	}
	return sq.And(conds), nil
}

// filterGroups coerces a combinator value into a list of filter mappings.
func filterGroups(key string, value interface{}) ([]map[string]interface{}, error) {
	switch v := value.(type) {
	case []map[string]interface{}:
		return v, nil
	case []interface{}:
		groups := make([]map[string]interface{}, len(v))
		for i, raw := range v {
			m, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%s combinator entries must be filter mappings, got %T", key, raw)
			}
			groups[i] = m
		}
		return groups, nil
	}
	return nil, fmt.Errorf("%s combinator requires a list of filter mappings, got %T", key, value)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
