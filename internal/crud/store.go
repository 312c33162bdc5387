// Package crud provides the write verbs over cataloged models: insert,
// update and delete by primary key, and single-record fetch. Payloads
// validate against the model descriptor and timestamp columns are stamped
// by the store rather than the caller.
package crud

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"smartquery/internal/attrpath"
	"smartquery/internal/entity"
	"smartquery/internal/executor"
	"smartquery/internal/logging"
	"smartquery/internal/planner"
	"smartquery/internal/schema"
)

var timeNow = time.Now

// Store executes the write verbs for cataloged models.
type Store struct {
	catalog *schema.Catalog
	db      executor.Querier
	exec    *executor.Executor
	logger  *logging.Logger
}

// NewStore binds the write verbs to a catalog and database handle. A nil
// logger falls back to the process default.
func NewStore(catalog *schema.Catalog, db executor.Querier, logger *logging.Logger) *Store {
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}
	return &Store{catalog: catalog, db: db, exec: executor.New(db, logger), logger: logger}
}

// Insert writes one record. When the model's primary key is a single
// auto-increment column the generated key is returned, zero otherwise.
// Timestamp columns are stamped with the current time.
func (s *Store) Insert(ctx context.Context, modelName string, values map[string]interface{}) (int64, error) {
	model, err := s.catalog.Describe(ctx, modelName)
	if err != nil {
		return 0, err
	}
	prepared, err := settableValues(model, values)
	if err != nil {
		return 0, err
	}
	if model.HasTimestamps() {
		now := timeNow().UTC()
		prepared[model.CreatedAtColumn()] = now
		prepared[model.UpdatedAtColumn()] = now
	}
	columns, args := orderedColumns(model, prepared)
	query, err := RenderInsert(model, columns, args)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("inserting record", slog.String("model", model.Name), slog.String("sql", query.SQL))
	result, err := s.db.ExecContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return 0, fmt.Errorf("inserting %s: %w", model.Name, err)
	}
	if col := autoIncrementPK(model); col != nil {
		return result.LastInsertId()
	}
	return 0, nil
}

// UpdateByPK updates one record's attributes, re-stamping the updated-at
// column when the model tracks timestamps. Returns the affected row
// count.
func (s *Store) UpdateByPK(ctx context.Context, modelName string, values map[string]interface{}, pk ...interface{}) (int64, error) {
	model, err := s.catalog.Describe(ctx, modelName)
	if err != nil {
		return 0, err
	}
	prepared, err := settableValues(model, values)
	if err != nil {
		return 0, err
	}
	if model.HasTimestamps() {
		prepared[model.UpdatedAtColumn()] = timeNow().UTC()
	}
	keys, err := pkValues(model, pk)
	if err != nil {
		return 0, err
	}
	query, err := RenderUpdate(model, prepared, keys)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("updating record", slog.String("model", model.Name), slog.String("sql", query.SQL))
	result, err := s.db.ExecContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return 0, fmt.Errorf("updating %s: %w", model.Name, err)
	}
	return result.RowsAffected()
}

// DeleteByPK deletes one record, returning the affected row count.
func (s *Store) DeleteByPK(ctx context.Context, modelName string, pk ...interface{}) (int64, error) {
	model, err := s.catalog.Describe(ctx, modelName)
	if err != nil {
		return 0, err
	}
	keys, err := pkValues(model, pk)
	if err != nil {
		return 0, err
	}
	query, err := RenderDelete(model, keys)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("deleting record", slog.String("model", model.Name), slog.String("sql", query.SQL))
	result, err := s.db.ExecContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return 0, fmt.Errorf("deleting %s: %w", model.Name, err)
	}
	return result.RowsAffected()
}

// GetByPK fetches one record by primary key, nil when no record matches.
func (s *Store) GetByPK(ctx context.Context, modelName string, pk ...interface{}) (*entity.Record, error) {
	model, err := s.catalog.Describe(ctx, modelName)
	if err != nil {
		return nil, err
	}
	keys, err := pkValues(model, pk)
	if err != nil {
		return nil, err
	}
	plan, err := planner.Resolve(ctx, s.catalog, modelName, planner.Input{Filters: keys, Limit: 1}, planner.Limits{})
	if err != nil {
		return nil, err
	}
	records, err := s.exec.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// settableValues validates a write payload against the model and returns
// a copy with UUID values normalized to their storage form.
func settableValues(model *schema.Model, values map[string]interface{}) (map[string]interface{}, error) {
	prepared := make(map[string]interface{}, len(values)+2)
	for _, name := range sortedKeys(values) {
		col, ok := model.Column(name)
		if !ok {
			if _, hybrid := model.Hybrid(name); hybrid {
				return nil, &ReadOnlyAttributeError{Attribute: name, Model: model.Name}
			}
			return nil, &attrpath.UnknownAttributeError{Name: name, Model: model.Name}
		}
		if !model.Settable(name) {
			return nil, &ReadOnlyAttributeError{Attribute: name, Model: model.Name}
		}
		value := values[name]
		if col.Kind == schema.KindUUID {
			normalized, err := schema.NormalizeUUID(col, value)
			if err != nil {
				return nil, err
			}
			value = normalized
		}
		prepared[name] = value
	}
	return prepared, nil
}

// orderedColumns lists the prepared values in model column order so the
// rendered insert stays deterministic.
func orderedColumns(model *schema.Model, prepared map[string]interface{}) ([]string, []interface{}) {
	columns := make([]string, 0, len(prepared))
	args := make([]interface{}, 0, len(prepared))
	for _, col := range model.Columns() {
		if value, ok := prepared[col.Name]; ok {
			columns = append(columns, col.Name)
			args = append(args, value)
		}
	}
	return columns, args
}

// pkValues pairs the caller's key values with the model's primary key
// columns, normalizing UUID keys.
func pkValues(model *schema.Model, pk []interface{}) (map[string]interface{}, error) {
	cols := model.PrimaryKey()
	if len(pk) != len(cols) {
		return nil, fmt.Errorf("model %s requires %d primary key values, got %d", model.Name, len(cols), len(pk))
	}
	values := make(map[string]interface{}, len(cols))
	for i, col := range cols {
		value := pk[i]
		if col.Kind == schema.KindUUID {
			normalized, err := schema.NormalizeUUID(col, value)
			if err != nil {
				return nil, err
			}
			value = normalized
		}
		values[col.Name] = value
	}
	return values, nil
}

func autoIncrementPK(model *schema.Model) *schema.Column {
	pk := model.PrimaryKey()
	if len(pk) == 1 && pk[0].AutoIncrement {
		return pk[0]
	}
	return nil
}

func sortedKeys(values map[string]interface{}) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
