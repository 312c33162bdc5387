// Package executor runs resolved query plans against a database handle
// and materializes the results as records. The root query runs first;
// batched eager loads follow as grouped IN queries attached back onto
// their parent records.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"smartquery/internal/entity"
	"smartquery/internal/logging"
	"smartquery/internal/planner"
)

// Querier is the minimal query surface the executor needs. Both *sql.DB
// and *sql.Tx satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Executor runs plans against one database handle.
type Executor struct {
	db      Querier
	logger  *logging.Logger
	metrics *executorMetrics
}

// New returns an executor bound to the database handle. A nil logger
// falls back to the process default.
func New(db Querier, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}
	metrics, err := newExecutorMetrics()
	if err != nil {
		logger.Warn("executor metrics disabled", slog.String("error", err.Error()))
	}
	return &Executor{db: db, logger: logger, metrics: metrics}
}

// Execute runs the plan and returns its root records with every eager
// load attached.
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan) ([]*entity.Record, error) {
	ctx, span := startSpan(ctx, "executor.execute",
		attribute.String("query.model", plan.Model.Name),
	)
	defer span.End()

	ctx, logger := e.requestLogger(ctx, plan)
	records, err := e.executePlan(ctx, logger, plan)
	if err != nil {
		recordSpanError(span, err)
		e.metrics.recordQuery(ctx, plan.Model.Name, "error")
		logger.Error("query failed", slog.String("model", plan.Model.Name), slog.String("error", err.Error()))
		return nil, err
	}
	span.SetAttributes(attribute.Int("query.records", len(records)))
	e.metrics.recordQuery(ctx, plan.Model.Name, "ok")
	logger.Debug("query completed", slog.String("model", plan.Model.Name), slog.Int("records", len(records)))
	return records, nil
}

// ExecuteCount runs the plan's matching-record count. Joined to-many
// relations count distinct records, mirroring the plan renderer.
func (e *Executor) ExecuteCount(ctx context.Context, plan *planner.Plan) (int64, error) {
	ctx, span := startSpan(ctx, "executor.count",
		attribute.String("query.model", plan.Model.Name),
	)
	defer span.End()

	ctx, logger := e.requestLogger(ctx, plan)
	count, err := e.executeCount(ctx, logger, plan)
	if err != nil {
		recordSpanError(span, err)
		e.metrics.recordQuery(ctx, plan.Model.Name, "error")
		return 0, err
	}
	span.SetAttributes(attribute.Int64("query.count", count))
	e.metrics.recordQuery(ctx, plan.Model.Name, "ok")
	return count, nil
}

func (e *Executor) executePlan(ctx context.Context, logger *logging.Logger, plan *planner.Plan) ([]*entity.Record, error) {
	query, err := planner.Render(plan)
	if err != nil {
		return nil, err
	}
	logger.Debug("running root query",
		slog.String("model", plan.Model.Name),
		slog.String("sql", query.SQL),
		slog.Int("args", len(query.Args)),
	)
	rows, err := e.db.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", plan.Model.Name, err)
	}
	state := newScanState(planner.Layout(plan), nil)
	if err := state.consume(rows); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", plan.Model.Name, err)
	}
	e.metrics.recordRows(ctx, plan.Model.Name, state.scanned)
	if err := e.runBatches(ctx, logger, plan, state.roots); err != nil {
		return nil, err
	}
	return state.roots, nil
}

func (e *Executor) executeCount(ctx context.Context, logger *logging.Logger, plan *planner.Plan) (int64, error) {
	query, err := planner.RenderCount(plan)
	if err != nil {
		return 0, err
	}
	logger.Debug("running count query",
		slog.String("model", plan.Model.Name),
		slog.String("sql", query.SQL),
	)
	rows, err := e.db.QueryContext(ctx, query.SQL, query.Args...)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", plan.Model.Name, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("count for %s returned no rows", plan.Model.Name)
	}
	var count int64
	if err := rows.Scan(&count); err != nil {
		return 0, err
	}
	return count, rows.Err()
}

// requestLogger tags the context and logger with a request ID, minting
// one when the caller did not supply any, and attaches the plan's shape
// fingerprint so log lines correlate across the root and batch queries.
func (e *Executor) requestLogger(ctx context.Context, plan *planner.Plan) (context.Context, *logging.Logger) {
	requestID := logging.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logging.WithRequestIDContext(ctx, requestID)
	}
	logger := e.logger.WithRequestID(requestID)
	if fp, err := planner.Fingerprint(plan); err == nil {
		logger = logger.WithFields(slog.String("fingerprint", fp))
	}
	return ctx, logger
}
