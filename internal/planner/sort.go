package planner

import (
	"strings"

	"smartquery/internal/attrpath"
	"smartquery/internal/schema"
)

// descPrefix flips a sort token to descending order.
const descPrefix = "-"

// SortKey is one resolved ORDER BY term.
type SortKey struct {
	Path *attrpath.Path
	Desc bool
}

// SortOutput is the compiled form of a sort token list: the resolved keys
// in caller order and the joins their relationship paths require.
type SortOutput struct {
	Keys  []SortKey
	Joins *JoinSet
}

// CompileSort resolves sort tokens against the model. Token order is
// preserved; a "-" prefix means descending.
func CompileSort(model *schema.Model, tokens []string) (*SortOutput, error) {
	out := &SortOutput{Joins: NewJoinSet(model)}
	for _, token := range tokens {
		desc := strings.HasPrefix(token, descPrefix)
		text := strings.TrimPrefix(token, descPrefix)
		path, err := attrpath.Resolve(model, text)
		if err != nil {
			return nil, err
		}
		out.Joins.AddPath(path)
		out.Keys = append(out.Keys, SortKey{Path: path, Desc: desc})
	}
	return out, nil
}

// orderClauses renders sort keys as ORDER BY terms qualified against the
// given join set.
func orderClauses(joins *JoinSet, keys []SortKey) []string {
	clauses := make([]string, len(keys))
	for i, key := range keys {
		dir := " ASC"
		if key.Desc {
			dir = " DESC"
		}
		clauses[i] = columnExpr(joins, key.Path) + dir
	}
	return clauses
}
