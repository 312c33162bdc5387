package planner

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel/attribute"

	"smartquery/internal/schema"
)

// Input is a declarative query request against one model.
type Input struct {
	// Filters is the operator-suffixed filter mapping, combined with the
	// reserved AND/OR keys.
	Filters map[string]interface{}
	// Sort lists attribute path tokens, "-" prefixed for descending.
	Sort []string
	// Load is the eager-load mapping keyed by relationship name.
	Load map[string]interface{}
	// Limit caps returned root records; zero means no cap.
	Limit int
	// Offset skips leading root records.
	Offset int
}

// Plan is an executable description of one SELECT: predicate, joins,
// ordering, pagination window, and the batched follow-up fetches hanging
// off it. Plans are immutable once resolved.
type Plan struct {
	Model   *schema.Model
	Where   sq.Sqlizer
	Sort    []SortKey
	Joins   *JoinSet
	Limit   int
	Offset  int
	Batches []*BatchPlan
}

// BatchPlan is a follow-up fetch for a batched eager-load edge.
type BatchPlan struct {
	// ParentPath locates parent records inside the owning plan's rows: ""
	// for the owning query's own records, otherwise the join path of the
	// eager to-one parent the batch hangs off.
	ParentPath string
	Relation   *schema.Relation
	Strategy   Strategy
	// Query describes the child fetch over the relation target, including
	// its own joins, nested batches, and per-parent window.
	Query *Plan
}

// Resolve compiles a declarative input into an executable plan.
func Resolve(ctx context.Context, catalog *schema.Catalog, modelName string, in Input, limits Limits) (*Plan, error) {
	ctx, span := startSpan(ctx, "planner.resolve",
		attribute.String("query.model", modelName),
	)
	defer span.End()

	plan, err := resolve(ctx, catalog, modelName, in, limits)
	if err != nil {
		recordSpanError(span, err)
		recordResolve(ctx, modelName, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("query.joins", totalJoins(plan)),
		attribute.Int("query.batches", totalBatches(plan)),
	)
	recordResolve(ctx, modelName, nil)
	return plan, nil
}

func resolve(ctx context.Context, catalog *schema.Catalog, modelName string, in Input, limits Limits) (*Plan, error) {
	model, err := catalog.Describe(ctx, modelName)
	if err != nil {
		return nil, err
	}
	filter, err := CompileFilters(model, in.Filters)
	if err != nil {
		return nil, err
	}
	sortOut, err := CompileSort(model, in.Sort)
	if err != nil {
		return nil, err
	}
	nodes, err := PlanEagerLoad(model, in.Load)
	if err != nil {
		return nil, err
	}
	if err := limits.checkDepth(nodes); err != nil {
		return nil, err
	}
	plan, err := Assemble(model, filter, sortOut, nodes, in.Limit, in.Offset)
	if err != nil {
		return nil, err
	}
	if err := limits.checkJoins(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Assemble merges compiled filters, sorts, and eager-load nodes into one
// plan, deduplicating join paths across the three sources.
func Assemble(model *schema.Model, filter *FilterOutput, sort *SortOutput, eager []*EagerNode, limit, offset int) (*Plan, error) {
	if err := validateLimitOffset(limit, offset); err != nil {
		return nil, err
	}
	plan := &Plan{Model: model, Joins: NewJoinSet(model), Limit: limit, Offset: offset}
	if filter != nil {
		plan.Where = filter.Predicate
		plan.Joins.Merge(filter.Joins)
	}
	if sort != nil {
		plan.Sort = sort.Keys
		plan.Joins.Merge(sort.Joins)
	}
	if err := attachEager(plan, "", eager); err != nil {
		return nil, err
	}
	if err := validatePagination(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// attachEager folds eager nodes into the plan: join-strategy nodes extend
// the plan's join set, batched nodes become follow-up fetches anchored at
// parentPath.
func attachEager(plan *Plan, parentPath string, nodes []*EagerNode) error {
	for _, node := range nodes {
		switch node.Strategy {
		case StrategyJoin:
			j := plan.Joins.Add(parentPath, node.Relation)
			j.Eager = true
			if err := attachEager(plan, j.Path, node.Children); err != nil {
				return err
			}
		case StrategyBatchedSelect, StrategyBatchedSubquery:
			query, err := assembleBatchQuery(node)
			if err != nil {
				return err
			}
			plan.Batches = append(plan.Batches, &BatchPlan{
				ParentPath: parentPath,
				Relation:   node.Relation,
				Strategy:   node.Strategy,
				Query:      query,
			})
		default:
			return &UnsupportedStrategyError{Strategy: string(node.Strategy), Relation: node.Relation.Name, Reason: "unrecognized strategy"}
		}
	}
	return nil
}

// assembleBatchQuery compiles a batched node's own filter, sort, and
// children into the child-fetch plan.
func assembleBatchQuery(node *EagerNode) (*Plan, error) {
	target := node.Relation.Target
	filter, err := CompileFilters(target, node.Filter)
	if err != nil {
		return nil, err
	}
	sortOut, err := CompileSort(target, node.Sort)
	if err != nil {
		return nil, err
	}
	return Assemble(target, filter, sortOut, node.Children, node.Limit, node.Offset)
}

// validatePagination rejects limit or offset on a query whose join set
// contains an eager to-many join. LIMIT would count multiplied child rows
// instead of parent records.
func validatePagination(plan *Plan) error {
	if plan.Limit == 0 && plan.Offset == 0 {
		return nil
	}
	for _, j := range plan.Joins.Joins() {
		if j.Eager && j.Relation.ToMany() {
			return &PaginationConflictError{Relation: j.Path, Limit: plan.Limit, Offset: plan.Offset}
		}
	}
	return nil
}

func validateLimitOffset(limit, offset int) error {
	if limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", limit)
	}
	if offset < 0 {
		return fmt.Errorf("offset must be non-negative, got %d", offset)
	}
	return nil
}

// totalJoins counts joins across the plan and all nested batch queries.
func totalJoins(plan *Plan) int {
	n := plan.Joins.Len()
	for _, bp := range plan.Batches {
		n += totalJoins(bp.Query)
	}
	return n
}

// totalBatches counts batch fetches across the plan tree.
func totalBatches(plan *Plan) int {
	n := len(plan.Batches)
	for _, bp := range plan.Batches {
		n += totalBatches(bp.Query)
	}
	return n
}
