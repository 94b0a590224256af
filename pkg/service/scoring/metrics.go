package scoring

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/regatta-scoring-go/log"
	"github.com/mpapenbr/regatta-scoring-go/pkg/processing/util"
)

type serviceMetrics struct {
	computations metric.Int64Counter
	duration     metric.Float64Histogram
}

func newServiceMetrics(l *log.Logger) *serviceMetrics {
	meter := otel.GetMeterProvider().Meter("rsm.standing")
	ret := &serviceMetrics{}
	var err error
	if ret.computations, err = meter.Int64Counter(
		"rsm.standing.computations",
		metric.WithDescription("Number of standing computations"),
		metric.WithUnit("{count}"),
	); err != nil {
		l.Error("failed to register metric",
			log.String("metric", "rsm.standing.computations"),
			log.ErrorField(err))
	}
	if ret.duration, err = meter.Float64Histogram(
		"rsm.standing.duration",
		metric.WithDescription("Duration of standing computations"),
		metric.WithUnit("s"),
	); err != nil {
		l.Error("failed to register metric",
			log.String("metric", "rsm.standing.duration"),
			log.ErrorField(err))
	}
	return ret
}

func (m *serviceMetrics) record(ctx context.Context, d time.Duration, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case util.IsConfigError(err):
		outcome = "config_error"
	default:
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	if m.computations != nil {
		m.computations.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, d.Seconds(), attrs)
	}
}
