package executor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// executorMetrics holds the execution instruments. A nil receiver
// disables recording, which New falls back to when instrument creation
// fails.
type executorMetrics struct {
	queriesExecuted metric.Int64Counter
	batchQueries    metric.Int64Counter
	rowsFetched     metric.Int64Counter
}

func newExecutorMetrics() (*executorMetrics, error) {
	meter := otel.Meter(tracerName)

	queriesExecuted, err := meter.Int64Counter(
		"smartquery.queries_executed",
		metric.WithDescription("Number of plan executions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating query counter: %w", err)
	}
	batchQueries, err := meter.Int64Counter(
		"smartquery.batch_queries",
		metric.WithDescription("Number of batched eager-load queries executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating batch counter: %w", err)
	}
	rowsFetched, err := meter.Int64Counter(
		"smartquery.rows_fetched",
		metric.WithDescription("Number of result rows scanned"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rows counter: %w", err)
	}

	return &executorMetrics{
		queriesExecuted: queriesExecuted,
		batchQueries:    batchQueries,
		rowsFetched:     rowsFetched,
	}, nil
}

// recordQuery counts one plan execution by model and outcome.
func (m *executorMetrics) recordQuery(ctx context.Context, model, status string) {
	if m == nil {
		return
	}
	m.queriesExecuted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("query.model", model),
		attribute.String("status", status),
	))
}

// recordBatch counts one batch query and its scanned rows.
func (m *executorMetrics) recordBatch(ctx context.Context, relation, strategy string, rows int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("query.relation", relation),
		attribute.String("query.strategy", strategy),
	)
	m.batchQueries.Add(ctx, 1, attrs)
	m.rowsFetched.Add(ctx, rows, attrs)
}

// recordRows counts scanned root rows for the model.
func (m *executorMetrics) recordRows(ctx context.Context, model string, rows int64) {
	if m == nil {
		return
	}
	m.rowsFetched.Add(ctx, rows, metric.WithAttributes(
		attribute.String("query.model", model),
	))
}
