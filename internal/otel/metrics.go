package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds the runtime's metric instruments.
type Metrics struct {
	UpdatesRouted      metric.Int64Counter
	PermissionDenials  metric.Int64Counter
	BreakerTransitions metric.Int64Counter
	RepliesSent        metric.Int64Counter
	RouteDuration      metric.Float64Histogram
	HealthDuration     metric.Float64Histogram
	AgentDuration      metric.Float64Histogram
	WorkersRunning     metric.Int64UpDownCounter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.UpdatesRouted, err = meter.Int64Counter("kickai.router.updates",
		metric.WithDescription("Inbound updates routed"),
	)
	if err != nil {
		return nil, err
	}

	m.PermissionDenials, err = meter.Int64Counter("kickai.router.denials",
		metric.WithDescription("Commands rejected by the permission gate"),
	)
	if err != nil {
		return nil, err
	}

	m.BreakerTransitions, err = meter.Int64Counter("kickai.registry.breaker_transitions",
		metric.WithDescription("Circuit breaker state transitions"),
	)
	if err != nil {
		return nil, err
	}

	m.RepliesSent, err = meter.Int64Counter("kickai.fleet.replies",
		metric.WithDescription("Replies sent through bot transports"),
	)
	if err != nil {
		return nil, err
	}

	m.RouteDuration, err = meter.Float64Histogram("kickai.router.duration",
		metric.WithDescription("Update routing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.HealthDuration, err = meter.Float64Histogram("kickai.registry.health_duration",
		metric.WithDescription("Service health-check duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.AgentDuration, err = meter.Float64Histogram("kickai.agent.duration",
		metric.WithDescription("NL agent processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.WorkersRunning, err = meter.Int64UpDownCounter("kickai.fleet.workers",
		metric.WithDescription("Bot workers currently running"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
