package otel

import (
	"context"
	"testing"
)

func TestInitDisabled(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init disabled: %v", err)
	}
	if p.Tracer == nil {
		t.Fatal("expected non-nil tracer (noop)")
	}
	if p.Meter == nil {
		t.Fatal("expected non-nil meter (noop)")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestInitNoneExporter(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: true, Exporter: "none"})
	if err != nil {
		t.Fatalf("Init with none exporter: %v", err)
	}
	defer p.Shutdown(context.Background())

	if p.TracerProvider == nil {
		t.Fatal("expected non-nil TracerProvider")
	}
	ctx, span := p.Tracer.Start(context.Background(), "test.span")
	if span == nil {
		t.Fatal("expected non-nil span")
	}
	span.End()
	_ = ctx
}

func TestInitUnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true, Exporter: "magic-pixie-dust"})
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("KICKAI_OTEL_EXPORTER", "")
	cfg := FromEnv("1.0.0")
	if cfg.Enabled {
		t.Fatal("expected telemetry off without KICKAI_OTEL_EXPORTER")
	}

	t.Setenv("KICKAI_OTEL_EXPORTER", "stdout")
	t.Setenv("KICKAI_OTEL_ENDPOINT", "collector:4318")
	cfg = FromEnv("1.0.0")
	if !cfg.Enabled || cfg.Exporter != "stdout" || cfg.Endpoint != "collector:4318" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.ServiceName != "kickai" || cfg.Version != "1.0.0" {
		t.Fatalf("unexpected identity %+v", cfg)
	}
}

func TestSpanHelpers(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: true, Exporter: "none"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), p.Tracer, "route.update",
		AttrTeamID.String("KTI"),
		AttrChatType.String("main"),
	)
	span.End()
	_ = ctx

	ctx2, span2 := StartServerSpan(context.Background(), p.Tracer, "gateway.health")
	span2.End()
	_ = ctx2

	ctx3, span3 := StartClientSpan(context.Background(), p.Tracer, "store.query",
		AttrService.String("data_store"),
	)
	span3.End()
	_ = ctx3
}
