package crud

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"smartquery/internal/planner"
	"smartquery/internal/schema"
	"smartquery/internal/sqlutil"
)

// RenderInsert builds the INSERT for one row with the given columns.
// Columns and values stay positionally paired; an empty column list
// renders the all-defaults form.
func RenderInsert(model *schema.Model, columns []string, values []interface{}) (planner.SQLQuery, error) {
	if len(columns) == 0 {
		query := fmt.Sprintf("INSERT INTO %s () VALUES ()", sqlutil.QuoteIdentifier(model.Table))
		return planner.SQLQuery{SQL: query}, nil
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = sqlutil.QuoteIdentifier(col)
	}
	builder := sq.Insert(sqlutil.QuoteIdentifier(model.Table)).
		Columns(quoted...).
		Values(values...)

	sqlStr, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return planner.SQLQuery{}, fmt.Errorf("rendering insert for %s: %w", model.Name, err)
	}
	return planner.SQLQuery{SQL: sqlStr, Args: args}, nil
}

// RenderUpdate builds the UPDATE for one row addressed by its primary key
// values. Set columns render in sorted order.
func RenderUpdate(model *schema.Model, set map[string]interface{}, pk map[string]interface{}) (planner.SQLQuery, error) {
	if len(set) == 0 {
		return planner.SQLQuery{}, fmt.Errorf("update for %s requires at least one attribute", model.Name)
	}

	quotedSet := make(map[string]interface{}, len(set))
	for col, value := range set {
		quotedSet[sqlutil.QuoteIdentifier(col)] = value
	}
	builder := sq.Update(sqlutil.QuoteIdentifier(model.Table)).
		SetMap(quotedSet).
		Where(quotedEq(pk))

	sqlStr, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return planner.SQLQuery{}, fmt.Errorf("rendering update for %s: %w", model.Name, err)
	}
	return planner.SQLQuery{SQL: sqlStr, Args: args}, nil
}

// RenderDelete builds the DELETE for one row addressed by its primary key
// values.
func RenderDelete(model *schema.Model, pk map[string]interface{}) (planner.SQLQuery, error) {
	builder := sq.Delete(sqlutil.QuoteIdentifier(model.Table)).
		Where(quotedEq(pk))

	sqlStr, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return planner.SQLQuery{}, fmt.Errorf("rendering delete for %s: %w", model.Name, err)
	}
	return planner.SQLQuery{SQL: sqlStr, Args: args}, nil
}

func quotedEq(values map[string]interface{}) sq.Eq {
	eq := make(sq.Eq, len(values))
	for col, value := range values {
		eq[sqlutil.QuoteIdentifier(col)] = value
	}
	return eq
}
