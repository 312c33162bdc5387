package planner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"smartquery/internal/attrpath"
	"smartquery/internal/schema"
	"smartquery/internal/sqlutil"
)

// BatchParentAlias is the trailing result column carrying the parent key
// value in batch query rows.
const BatchParentAlias = "__batch_parent_id"

// BatchMaxParents caps parent key values per rendered IN list. Callers
// split larger parent sets across multiple batch queries.
const BatchMaxParents = 1000

// RenderBatch builds the follow-up query fetching a batch's child rows for
// the given parent key values. Result rows follow Layout(bp.Query) with
// one trailing BatchParentAlias column.
func RenderBatch(bp *BatchPlan, parents []interface{}) (SQLQuery, error) {
	if len(parents) == 0 {
		return SQLQuery{}, fmt.Errorf("batch for %q requires at least one parent key", bp.Relation.Name)
	}
	if bp.Strategy == StrategyBatchedSubquery {
		return renderBatchWindow(bp, parents)
	}
	return renderBatchSelect(bp, parents)
}

// renderBatchSelect fetches all children for the parent set in one IN
// query. Rows come back globally ordered; grouping by parent happens
// during attachment.
func renderBatchSelect(bp *BatchPlan, parents []interface{}) (SQLQuery, error) {
	q := bp.Query
	parentCol := parentKeyColumn(bp)
	exprs := append(selectExprs(q, false), sqlutil.AliasColumn(parentCol, BatchParentAlias))

	builder := sq.Select(exprs...).From(sqlutil.QuoteIdentifier(q.Model.Table))
	if bp.Relation.Kind == schema.ManyToMany {
		builder = builder.InnerJoin(junctionJoinClause(bp.Relation))
	}
	for _, j := range q.Joins.Joins() {
		for _, clause := range q.Joins.Clauses(j) {
			builder = builder.LeftJoin(clause)
		}
	}
	builder = builder.Where(sq.Eq{parentCol: parents})
	if q.Where != nil {
		builder = builder.Where(q.Where)
	}
	builder = builder.OrderBy(batchOrderClauses(q)...)

	sqlStr, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, fmt.Errorf("rendering batch for %s: %w", bp.Relation.Name, err)
	}
	return SQLQuery{SQL: sqlStr, Args: args}, nil
}

// renderBatchWindow fetches children through a ROW_NUMBER window
// partitioned by parent key, preserving per-parent ordering and applying
// the per-parent limit and offset when set.
func renderBatchWindow(bp *BatchPlan, parents []interface{}) (SQLQuery, error) {
	q := bp.Query
	parentCol := parentKeyColumn(bp)

	inner := append(selectExprs(q, true), sqlutil.AliasColumn(parentCol, BatchParentAlias))

	fromParts := []string{sqlutil.QuoteIdentifier(q.Model.Table)}
	if bp.Relation.Kind == schema.ManyToMany {
		fromParts = append(fromParts, "INNER JOIN "+junctionJoinClause(bp.Relation))
	}
	for _, j := range q.Joins.Joins() {
		for _, clause := range q.Joins.Clauses(j) {
			fromParts = append(fromParts, "LEFT JOIN "+clause)
		}
	}

	whereSQL := fmt.Sprintf("%s IN (%s)", parentCol, sq.Placeholders(len(parents)))
	args := append([]interface{}{}, parents...)
	if q.Where != nil {
		predSQL, predArgs, err := q.Where.ToSql()
		if err != nil {
			return SQLQuery{}, fmt.Errorf("rendering batch predicate for %s: %w", bp.Relation.Name, err)
		}
		whereSQL += " AND (" + predSQL + ")"
		args = append(args, predArgs...)
	}

	rnFilter := ""
	switch {
	case q.Limit > 0:
		rnFilter = " WHERE __rn > ? AND __rn <= ?"
		args = append(args, q.Offset, q.Offset+q.Limit)
	case q.Offset > 0:
		rnFilter = " WHERE __rn > ?"
		args = append(args, q.Offset)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM (SELECT %s, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s) AS __rn FROM %s WHERE %s) AS __batch%s ORDER BY %s, __rn",
		strings.Join(outerNames(q), ", "),
		strings.Join(inner, ", "),
		parentCol,
		strings.Join(batchOrderClauses(q), ", "),
		strings.Join(fromParts, " "),
		whereSQL,
		rnFilter,
		sqlutil.QuoteIdentifier(BatchParentAlias),
	)
	return SQLQuery{SQL: query, Args: args}, nil
}

// parentKeyColumn returns the qualified column carrying the parent key in
// child rows: the junction table's local foreign key for many-to-many, the
// target's remote column otherwise.
func parentKeyColumn(bp *BatchPlan) string {
	rel := bp.Relation
	if rel.Kind == schema.ManyToMany {
		return sqlutil.QualifyColumn(rel.JoinTable, rel.JoinLocalColumn)
	}
	return sqlutil.QualifyColumn(rel.Target.Table, rel.RemoteColumn.Name)
}

// junctionJoinClause renders the INNER JOIN binding a many-to-many target
// to its junction table.
func junctionJoinClause(rel *schema.Relation) string {
	return fmt.Sprintf("%s ON %s = %s",
		sqlutil.QuoteIdentifier(rel.JoinTable),
		sqlutil.QualifyColumn(rel.JoinTable, rel.JoinRemoteColumn),
		sqlutil.QualifyColumn(rel.Target.Table, rel.RemoteColumn.Name),
	)
}

// batchOrderClauses renders the child ordering, falling back to primary
// key order so attachment stays deterministic when no sort was requested.
func batchOrderClauses(q *Plan) []string {
	if len(q.Sort) > 0 {
		return orderClauses(q.Joins, q.Sort)
	}
	pk := q.Model.PrimaryKey()
	clauses := make([]string, len(pk))
	for i, col := range pk {
		clauses[i] = sqlutil.QualifyColumn(q.Model.Table, col.Name) + " ASC"
	}
	return clauses
}

// outerNames lists the derived table's result column names in layout
// order, ending with the parent alias.
func outerNames(q *Plan) []string {
	layout := Layout(q)
	names := make([]string, 0, layout.Width()+1)
	for _, col := range layout.Root {
		names = append(names, sqlutil.QuoteIdentifier(col.Name))
	}
	for _, seg := range layout.Eager {
		for _, col := range seg.Columns {
			names = append(names, sqlutil.QuoteIdentifier(seg.Join.Path+attrpath.Sep+col.Name))
		}
	}
	return append(names, sqlutil.QuoteIdentifier(BatchParentAlias))
}
