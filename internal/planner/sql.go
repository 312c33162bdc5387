package planner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"smartquery/internal/attrpath"
	"smartquery/internal/schema"
	"smartquery/internal/sqlutil"
)

// SQLQuery pairs a SQL string with its placeholder arguments.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// EagerSegment maps one eager join's slice of the select list.
type EagerSegment struct {
	Join    *Join
	Columns []*schema.Column
}

// ColumnLayout describes the select-list structure of a rendered plan:
// the root model's columns first, then each eager join's target columns in
// join registration order. Scanning maps result positions through this
// layout; any trailing columns beyond it are helpers to ignore.
type ColumnLayout struct {
	Model *schema.Model
	Root  []*schema.Column
	Eager []EagerSegment
}

// Layout computes the select-list layout for the plan.
func Layout(plan *Plan) *ColumnLayout {
	layout := &ColumnLayout{Model: plan.Model, Root: plan.Model.Columns()}
	for _, j := range plan.Joins.Joins() {
		if !j.Eager {
			continue
		}
		layout.Eager = append(layout.Eager, EagerSegment{Join: j, Columns: j.Relation.Target.Columns()})
	}
	return layout
}

// Width returns the number of select-list positions the layout covers.
func (l *ColumnLayout) Width() int {
	n := len(l.Root)
	for _, seg := range l.Eager {
		n += len(seg.Columns)
	}
	return n
}

// Render builds the root SELECT for the plan.
func Render(plan *Plan) (SQLQuery, error) {
	exprs := append(selectExprs(plan, false), distinctSortExprs(plan)...)
	builder := sq.Select(exprs...).From(sqlutil.QuoteIdentifier(plan.Model.Table))
	if needsDistinct(plan) {
		builder = builder.Distinct()
	}
	for _, j := range plan.Joins.Joins() {
		for _, clause := range plan.Joins.Clauses(j) {
			builder = builder.LeftJoin(clause)
		}
	}
	if plan.Where != nil {
		builder = builder.Where(plan.Where)
	}
	if len(plan.Sort) > 0 {
		builder = builder.OrderBy(orderClauses(plan.Joins, plan.Sort)...)
	}
	if plan.Limit > 0 {
		builder = builder.Limit(uint64(plan.Limit))
	}
	if plan.Offset > 0 {
		builder = builder.Offset(uint64(plan.Offset))
	}
	sqlStr, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, fmt.Errorf("rendering query for %s: %w", plan.Model.Name, err)
	}
	return SQLQuery{SQL: sqlStr, Args: args}, nil
}

// RenderCount builds a COUNT query matching the plan's predicate. Joins
// that multiply root rows switch the count to distinct primary keys so the
// result counts records rather than joined rows. Sort, limit, and offset
// do not apply.
func RenderCount(plan *Plan) (SQLQuery, error) {
	countExpr := "COUNT(*)"
	if plan.Joins.HasToMany() {
		pk := plan.Model.PrimaryKey()
		quoted := make([]string, len(pk))
		for i, col := range pk {
			quoted[i] = sqlutil.QualifyColumn(plan.Model.Table, col.Name)
		}
		countExpr = "COUNT(DISTINCT " + strings.Join(quoted, ", ") + ")"
	}
	builder := sq.Select(countExpr).From(sqlutil.QuoteIdentifier(plan.Model.Table))
	for _, j := range plan.Joins.Joins() {
		for _, clause := range plan.Joins.Clauses(j) {
			builder = builder.LeftJoin(clause)
		}
	}
	if plan.Where != nil {
		builder = builder.Where(plan.Where)
	}
	sqlStr, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, fmt.Errorf("rendering count for %s: %w", plan.Model.Name, err)
	}
	return SQLQuery{SQL: sqlStr, Args: args}, nil
}

// selectExprs renders the plan's layout as select expressions. Root
// columns are table qualified and eager join columns are aliased by their
// relation path so result names stay unambiguous. When aliased is set the
// root columns also carry explicit aliases, which derived-table subqueries
// need so the outer query can re-reference them.
func selectExprs(plan *Plan, aliased bool) []string {
	layout := Layout(plan)
	exprs := make([]string, 0, layout.Width())
	for _, col := range layout.Root {
		expr := sqlutil.QualifyColumn(plan.Model.Table, col.Name)
		if aliased {
			expr = sqlutil.AliasColumn(expr, col.Name)
		}
		exprs = append(exprs, expr)
	}
	for _, seg := range layout.Eager {
		for _, col := range seg.Columns {
			expr := sqlutil.QualifyColumn(seg.Join.Alias(), col.Name)
			exprs = append(exprs, sqlutil.AliasColumn(expr, seg.Join.Path+attrpath.Sep+col.Name))
		}
	}
	return exprs
}

// needsDistinct reports whether the root SELECT must deduplicate joined
// rows before applying its pagination window. True when limit or offset
// combines with a row-multiplying filter or sort join.
func needsDistinct(plan *Plan) bool {
	return (plan.Limit > 0 || plan.Offset > 0) && plan.Joins.HasToMany()
}

// distinctSortExprs lists sort expressions that must be appended to the
// select list under DISTINCT. MySQL rejects DISTINCT queries ordered by
// expressions absent from the select list.
func distinctSortExprs(plan *Plan) []string {
	if !needsDistinct(plan) {
		return nil
	}
	var extra []string
	for _, key := range plan.Sort {
		if len(key.Path.Hops) == 0 && key.Path.Hybrid == nil {
			continue
		}
		extra = append(extra, columnExpr(plan.Joins, key.Path))
	}
	return extra
}
