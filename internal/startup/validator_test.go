package startup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/kickai/kickai/internal/config"
	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/registry"
	"github.com/kickai/kickai/internal/store"
	"github.com/kickai/kickai/internal/teamcache"
	"github.com/kickai/kickai/internal/tools"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mapSource map[string]any

func (m mapSource) Get(name string) (any, error) {
	v, ok := m[name]
	if !ok {
		return nil, errors.New("not registered")
	}
	return v, nil
}

type okFactory struct{ created []string }

func (f *okFactory) CreateAgent(_ context.Context, name string) error {
	f.created = append(f.created, name)
	return nil
}

type failFactory struct{}

func (failFactory) CreateAgent(context.Context, string) error {
	return errors.New("model offline")
}

type stubRouter struct{}

func (stubRouter) Route(_ context.Context, msg domain.RoutedMessage) domain.Reply {
	return domain.Reply{ChatID: msg.ChatID, Text: "ok"}
}

func testSettings(t *testing.T) config.Settings {
	t.Helper()
	t.Setenv("KICKAI_HOME", t.TempDir())
	t.Setenv("USE_MOCK_DATASTORE", "true")
	t.Setenv("KICKAI_INVITE_SECRET_KEY", "test-secret")
	t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")
	s, err := config.Load()
	if err != nil {
		t.Fatalf("settings must load cleanly: %v", err)
	}
	return s
}

type fixture struct {
	deps  Deps
	store *store.Memory
	reg   *registry.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	settings := testSettings(t)
	st := store.NewMemory()

	reg := registry.New(registry.Config{Logger: quietLogger()})
	reg.AddChecker(registry.StoreChecker{})
	reg.AddChecker(registry.PlayerServiceChecker{})
	reg.AddChecker(registry.TeamServiceChecker{})
	reg.AddChecker(registry.AgentChecker{})
	reg.AddChecker(registry.ExternalChecker{})
	if err := reg.Register(domain.ServiceDefinition{
		Name:               "data_store",
		ServiceType:        domain.ServiceTypeCore,
		HealthCheckEnabled: true,
	}, st); err != nil {
		t.Fatal(err)
	}

	cache := teamcache.New(st, quietLogger())
	if err := cache.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	return &fixture{
		deps: Deps{
			Settings: settings,
			Store:    st,
			Registry: reg,
			Catalog:  tools.NewCatalog(mapSource{}),
			Cache:    cache,
			Factory:  &okFactory{},
			Router:   stubRouter{},
			Logger:   quietLogger(),
		},
		store: st,
		reg:   reg,
	}
}

func TestAllPhasesPass(t *testing.T) {
	f := newFixture(t)
	report := New(f.deps).Run(context.Background())

	if report.Failed() {
		t.Fatalf("expected a clean run, got:\n%s", report.Render())
	}
	if len(report.Results) != 7 {
		t.Fatalf("expected 7 phases, got %d", len(report.Results))
	}
	for _, pr := range report.Results {
		if pr.Status == StatusFail {
			t.Fatalf("phase %s failed: %s", pr.Phase, pr.Message)
		}
	}
	factory := f.deps.Factory.(*okFactory)
	if len(factory.created) != 1 || factory.created[0] != registry.DiagnosticAgentName {
		t.Fatalf("expected the diagnostic agent to be created, got %v", factory.created)
	}
}

func TestFailFastOnStoreDown(t *testing.T) {
	f := newFixture(t)
	f.store.SetError(store.ErrUnavailable)

	report := New(f.deps).Run(context.Background())
	if !report.Failed() {
		t.Fatal("expected a failed report")
	}
	last := report.Results[len(report.Results)-1]
	if last.Phase != "core-deps" {
		t.Fatalf("expected to stop at core-deps, stopped at %s", last.Phase)
	}
	if len(report.Results) != 3 {
		t.Fatalf("fail-fast must not run later phases, got %d results", len(report.Results))
	}
}

func TestUnhealthyCoreServiceFailsServicesPhase(t *testing.T) {
	f := newFixture(t)
	// A core service whose instance is not a store hard-fails the sweep.
	if err := f.reg.Register(domain.ServiceDefinition{
		Name:               "config_store",
		ServiceType:        domain.ServiceTypeCore,
		HealthCheckEnabled: true,
	}, struct{}{}); err != nil {
		t.Fatal(err)
	}

	report := New(f.deps).Run(context.Background())
	if !report.Failed() {
		t.Fatal("expected a failed report")
	}
	last := report.Results[len(report.Results)-1]
	if last.Phase != "services" {
		t.Fatalf("expected to stop at services, stopped at %s", last.Phase)
	}
	if !strings.Contains(last.Message, "config_store") {
		t.Fatalf("expected the failing service named, got %q", last.Message)
	}
}

func TestUnhealthyFeatureServiceOnlyWarns(t *testing.T) {
	f := newFixture(t)
	if err := f.reg.Register(domain.ServiceDefinition{
		Name:               "player_service",
		ServiceType:        domain.ServiceTypeFeature,
		HealthCheckEnabled: true,
	}, struct{}{}); err != nil {
		t.Fatal(err)
	}

	report := New(f.deps).Run(context.Background())
	if report.Failed() {
		t.Fatalf("feature-service failure must not abort startup:\n%s", report.Render())
	}
	var services PhaseResult
	for _, pr := range report.Results {
		if pr.Phase == "services" {
			services = pr
		}
	}
	if services.Status != StatusWarn {
		t.Fatalf("expected a warning, got %s", services.Status)
	}
}

func TestDiagnosticAgentFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.deps.Factory = failFactory{}

	report := New(f.deps).Run(context.Background())
	if !report.Failed() {
		t.Fatal("expected a failed report")
	}
	last := report.Results[len(report.Results)-1]
	if last.Phase != "agents" {
		t.Fatalf("expected to stop at agents, stopped at %s", last.Phase)
	}
}

func TestRunPhasesSubset(t *testing.T) {
	f := newFixture(t)
	report := New(f.deps).RunPhases(context.Background(), 2)
	if len(report.Results) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(report.Results))
	}
	if report.Failed() {
		t.Fatalf("expected clean phases:\n%s", report.Render())
	}
}

func TestRenderMarksStatuses(t *testing.T) {
	report := Report{Results: []PhaseResult{
		{Phase: "pre-init", Status: StatusPass, Message: "ok"},
		{Phase: "services", Status: StatusWarn, Message: "degraded", Details: []string{"x: down"}},
		{Phase: "agents", Status: StatusFail, Message: "broken"},
	}}
	out := report.Render()
	for _, want := range []string{"✅", "⚠️", "❌", "x: down"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in render, got:\n%s", want, out)
		}
	}
}
