package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"smartquery/internal/attrpath"
	"smartquery/internal/entity"
	"smartquery/internal/logging"
	"smartquery/internal/planner"
	"smartquery/internal/schema"
)

// runBatches executes the plan's batched eager loads against the records
// the plan produced, recursing through nested batch levels.
func (e *Executor) runBatches(ctx context.Context, logger *logging.Logger, plan *planner.Plan, records []*entity.Record) error {
	for _, bp := range plan.Batches {
		if err := e.runBatch(ctx, logger, bp, collectParents(records, bp.ParentPath)); err != nil {
			return err
		}
	}
	return nil
}

// runBatch fetches one batched relation for the parent records, chunking
// the parent key set, grouping the children by parent key, and attaching
// them. Nested batches then run against the fetched children.
func (e *Executor) runBatch(ctx context.Context, logger *logging.Logger, bp *planner.BatchPlan, parents []*entity.Record) error {
	if len(parents) == 0 {
		return nil
	}
	keys := parentKeys(parents, bp.Relation.LocalColumn)
	if len(keys) == 0 {
		attachBatch(bp, parents, nil)
		return nil
	}

	layout := planner.Layout(bp.Query)
	grouped := make(map[string][]*entity.Record)
	var children []*entity.Record
	for _, chunk := range chunkKeys(keys, planner.BatchMaxParents) {
		query, err := planner.RenderBatch(bp, chunk)
		if err != nil {
			return err
		}
		logger.Debug("running batch query",
			slog.String("relation", bp.Relation.Name),
			slog.String("strategy", string(bp.Strategy)),
			slog.Int("parents", len(chunk)),
			slog.String("sql", query.SQL),
		)
		rows, err := e.db.QueryContext(ctx, query.SQL, query.Args...)
		if err != nil {
			return fmt.Errorf("querying batch %s: %w", bp.Relation.Name, err)
		}
		state := newScanState(layout, bp.Relation.LocalColumn)
		if err := state.consume(rows); err != nil {
			return fmt.Errorf("scanning batch %s: %w", bp.Relation.Name, err)
		}
		e.metrics.recordBatch(ctx, bp.Relation.Name, string(bp.Strategy), state.scanned)
		for key, recs := range state.groups {
			grouped[key] = append(grouped[key], recs...)
		}
		children = append(children, state.roots...)
	}

	attachBatch(bp, parents, grouped)
	return e.runBatches(ctx, logger, bp.Query, children)
}

// collectParents gathers the records sitting at the batch's parent path:
// the given records themselves for the root anchor, otherwise the related
// records reached by walking the eager join path.
func collectParents(records []*entity.Record, parentPath string) []*entity.Record {
	if parentPath == "" {
		return records
	}
	current := records
	for _, hop := range strings.Split(parentPath, attrpath.Sep) {
		var next []*entity.Record
		for _, rec := range current {
			if one, ok := rec.One(hop); ok {
				if one != nil {
					next = append(next, one)
				}
				continue
			}
			if many, ok := rec.Many(hop); ok {
				next = append(next, many...)
			}
		}
		current = next
	}
	return current
}

// parentKeys collects the distinct non-nil parent key values in first-seen
// order. UUID keys convert back to their storage form so they compare
// against the child table's foreign key column.
func parentKeys(parents []*entity.Record, col *schema.Column) []interface{} {
	seen := make(map[string]struct{})
	keys := make([]interface{}, 0, len(parents))
	for _, rec := range parents {
		raw := rec.Attr(col.Name)
		if raw == nil {
			continue
		}
		normalized := fmt.Sprint(raw)
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		if col.Kind == schema.KindUUID {
			if storage, err := schema.NormalizeUUID(col, raw); err == nil {
				raw = storage
			}
		}
		keys = append(keys, raw)
	}
	return keys
}

// chunkKeys splits the key set into slices of at most max values.
func chunkKeys(values []interface{}, max int) [][]interface{} {
	if len(values) == 0 {
		return nil
	}
	if max <= 0 || len(values) <= max {
		return [][]interface{}{values}
	}
	chunks := make([][]interface{}, 0, (len(values)+max-1)/max)
	for start := 0; start < len(values); start += max {
		end := start + max
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

// attachBatch hangs the grouped children off each parent record by its
// local key value. Parents with no matching children are marked loaded
// with an empty list, or nil for a to-one relation.
func attachBatch(bp *planner.BatchPlan, parents []*entity.Record, grouped map[string][]*entity.Record) {
	name := bp.Relation.Name
	column := bp.Relation.LocalColumn.Name
	toMany := bp.Relation.ToMany()
	for _, parent := range parents {
		var group []*entity.Record
		if raw := parent.Attr(column); raw != nil {
			group = grouped[fmt.Sprint(raw)]
		}
		if toMany {
			parent.SetMany(name, group)
			continue
		}
		if len(group) == 0 {
			parent.SetOne(name, nil)
			continue
		}
		parent.SetOne(name, group[0])
	}
}
