package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/perch-social/perch/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type authMetrics struct {
	deviceStartCounter metric.Int64Counter
	devicePollCounter  metric.Int64Counter
	validationCounter  metric.Int64Counter
	logoutCounter      metric.Int64Counter
	sweepCounter       metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *authMetrics

	repoMetricsOnce sync.Once
	repoOpCounter   metric.Int64Counter
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("perch-authd")
	deviceStart, err := meter.Int64Counter("auth.device.start")
	if err != nil {
		return nil, err
	}
	devicePoll, err := meter.Int64Counter("auth.device.poll")
	if err != nil {
		return nil, err
	}
	validations, err := meter.Int64Counter("auth.session.validations")
	if err != nil {
		return nil, err
	}
	logouts, err := meter.Int64Counter("auth.logout.attempts")
	if err != nil {
		return nil, err
	}
	swept, err := meter.Int64Counter("auth.sessions.swept")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &authMetrics{
		deviceStartCounter: deviceStart,
		devicePollCounter:  devicePoll,
		validationCounter:  validations,
		logoutCounter:      logouts,
		sweepCounter:       swept,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func RecordDeviceStart(status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.deviceStartCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", status)))
}

func RecordDevicePoll(status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.devicePollCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", status)))
}

func RecordSessionValidation(outcome, source string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.validationCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("source", source),
		))
}

func RecordAuthLogout(status string) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil {
		return
	}
	m.logoutCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", status)))
}

func RecordSessionsSwept(entity string, count int64) {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	if m == nil || count <= 0 {
		return
	}
	m.sweepCounter.Add(context.Background(), count,
		metric.WithAttributes(attribute.String("entity", entity)))
}

// RecordRepositoryOperation works before InitMetrics runs; the default
// global meter provider is a no-op until the exporter is wired.
func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	repoMetricsOnce.Do(func() {
		counter, err := otel.Meter("perch-authd").Int64Counter("repository.operations")
		if err == nil {
			repoOpCounter = counter
		}
	})
	if repoOpCounter == nil {
		return
	}
	repoOpCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}
