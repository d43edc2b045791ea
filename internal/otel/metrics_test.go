package otel

import (
	"context"
	"testing"
)

func TestNewMetricsAllInstrumentsCreated(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: true, Exporter: "none"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	if m.UpdatesRouted == nil {
		t.Error("UpdatesRouted is nil")
	}
	if m.PermissionDenials == nil {
		t.Error("PermissionDenials is nil")
	}
	if m.BreakerTransitions == nil {
		t.Error("BreakerTransitions is nil")
	}
	if m.RepliesSent == nil {
		t.Error("RepliesSent is nil")
	}
	if m.RouteDuration == nil {
		t.Error("RouteDuration is nil")
	}
	if m.HealthDuration == nil {
		t.Error("HealthDuration is nil")
	}
	if m.AgentDuration == nil {
		t.Error("AgentDuration is nil")
	}
	if m.WorkersRunning == nil {
		t.Error("WorkersRunning is nil")
	}
}

func TestNewMetricsNoopMeter(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics with noop: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Metrics")
	}
}
