package planner

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type plannerMetrics struct {
	plansResolved metric.Int64Counter
}

var (
	metricsOnce sync.Once
	metricsInst plannerMetrics
)

// meterMetrics lazily creates the package instruments against the global
// meter provider.
func meterMetrics() plannerMetrics {
	metricsOnce.Do(func() {
		meter := otel.Meter(tracerName)
		var err error
		metricsInst.plansResolved, err = meter.Int64Counter(
			"smartquery.plans_resolved",
			metric.WithDescription("Number of declarative query inputs resolved into plans"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
	return metricsInst
}

// recordResolve counts one resolution attempt, labeled by model and
// outcome.
func recordResolve(ctx context.Context, model string, resolveErr error) {
	m := meterMetrics()
	if m.plansResolved == nil {
		return
	}
	status := "ok"
	if resolveErr != nil {
		status = "error"
	}
	m.plansResolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("query.model", model),
		attribute.String("status", status),
	))
}
