// Package startup runs the phased boot validation: seven ordered phases,
// fail-fast on the first hard failure, with a report an operator can read
// in one glance.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kickai/kickai/internal/config"
	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/registry"
	"github.com/kickai/kickai/internal/store"
	"github.com/kickai/kickai/internal/teamcache"
	"github.com/kickai/kickai/internal/tools"
)

// Phase statuses.
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// PhaseResult is one phase's outcome.
type PhaseResult struct {
	Phase    string        `json:"phase"`
	Status   string        `json:"status"`
	Message  string        `json:"message"`
	Details  []string      `json:"details,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report aggregates the phase results of one validation run.
type Report struct {
	Timestamp time.Time     `json:"timestamp"`
	Results   []PhaseResult `json:"results"`
}

// Failed reports whether any phase hard-failed.
func (r Report) Failed() bool {
	for _, pr := range r.Results {
		if pr.Status == StatusFail {
			return true
		}
	}
	return false
}

// Render returns the operator-facing table.
func (r Report) Render() string {
	var b strings.Builder
	for _, pr := range r.Results {
		mark := "✅"
		switch pr.Status {
		case StatusWarn:
			mark = "⚠️"
		case StatusFail:
			mark = "❌"
		}
		fmt.Fprintf(&b, "%s %-16s %s (%s)\n", mark, pr.Phase, pr.Message, pr.Duration.Round(time.Millisecond))
		for _, d := range pr.Details {
			fmt.Fprintf(&b, "     - %s\n", d)
		}
	}
	return b.String()
}

// Deps are the already-constructed collaborators the validator inspects.
// Nil members fail the phase that needs them.
type Deps struct {
	Settings config.Settings
	Store    store.Store
	Registry *registry.Registry
	Catalog  *tools.Registry
	Cache    *teamcache.Cache
	Factory  registry.AgentFactory
	Router   registry.MessageRouter
	Logger   *slog.Logger
}

// Validator runs the phases in order.
type Validator struct {
	deps   Deps
	logger *slog.Logger
}

// New builds a validator.
func New(deps Deps) *Validator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{deps: deps, logger: logger}
}

type phase struct {
	name string
	run  func(ctx context.Context) PhaseResult
}

// Run executes all phases, stopping at the first hard failure.
func (v *Validator) Run(ctx context.Context) Report {
	report := Report{Timestamp: time.Now().UTC()}
	for _, p := range v.phases() {
		start := time.Now()
		result := p.run(ctx)
		result.Phase = p.name
		result.Duration = time.Since(start)
		report.Results = append(report.Results, result)

		v.logger.Info("startup phase finished",
			"phase", p.name, "status", result.Status, "message", result.Message)
		if result.Status == StatusFail {
			break
		}
	}
	return report
}

// RunPhases executes only the first n phases; the doctor command uses this
// for its read-only probe set.
func (v *Validator) RunPhases(ctx context.Context, n int) Report {
	report := Report{Timestamp: time.Now().UTC()}
	for i, p := range v.phases() {
		if i >= n {
			break
		}
		start := time.Now()
		result := p.run(ctx)
		result.Phase = p.name
		result.Duration = time.Since(start)
		report.Results = append(report.Results, result)
		if result.Status == StatusFail {
			break
		}
	}
	return report
}

func (v *Validator) phases() []phase {
	return []phase{
		{"pre-init", v.preInit},
		{"configuration", v.configuration},
		{"core-deps", v.coreDependencies},
		{"registries", v.registries},
		{"services", v.services},
		{"agents", v.agents},
		{"post-init", v.postInit},
	}
}

// preInit checks the process environment: home directory and temp space
// must be writable before anything else is worth trying.
func (v *Validator) preInit(context.Context) PhaseResult {
	home := v.deps.Settings.HomeDir
	if home == "" {
		home = config.HomeDir()
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return PhaseResult{Status: StatusFail, Message: fmt.Sprintf("home directory %s not writable: %v", home, err)}
	}
	probe := filepath.Join(home, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return PhaseResult{Status: StatusFail, Message: fmt.Sprintf("home directory %s not writable: %v", home, err)}
	}
	_ = os.Remove(probe)

	tmp, err := os.CreateTemp("", "kickai-probe-*")
	if err != nil {
		return PhaseResult{Status: StatusFail, Message: fmt.Sprintf("temp space not writable: %v", err)}
	}
	tmp.Close()
	_ = os.Remove(tmp.Name())

	return PhaseResult{Status: StatusPass, Message: "environment ready", Details: []string{"home: " + home}}
}

// configuration validates the loaded settings and the closed domain
// enumerations the runtime depends on.
func (v *Validator) configuration(context.Context) PhaseResult {
	if problems := v.deps.Settings.Validate(); len(problems) > 0 {
		return PhaseResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("settings invalid (%d problems)", len(problems)),
			Details: problems,
		}
	}

	var details []string
	status := StatusPass
	if v.deps.Settings.AI.Model == "" {
		status = StatusWarn
		details = append(details, "no AI model configured; natural language falls back deterministically")
	}
	if len(domain.Positions()) == 0 || len(domain.PlayerStatuses()) == 0 {
		return PhaseResult{Status: StatusFail, Message: "domain enumerations are empty"}
	}
	details = append(details,
		fmt.Sprintf("environment: %s", v.deps.Settings.Environment),
		fmt.Sprintf("fingerprint: %s", v.deps.Settings.Fingerprint()))
	return PhaseResult{Status: status, Message: "settings valid", Details: details}
}

// coreDependencies verifies the store responds.
func (v *Validator) coreDependencies(ctx context.Context) PhaseResult {
	if v.deps.Store == nil {
		return PhaseResult{Status: StatusFail, Message: "no store constructed"}
	}
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if p, ok := v.deps.Store.(registry.Pinger); ok {
		if err := p.Ping(probeCtx); err != nil {
			return PhaseResult{Status: StatusFail, Message: fmt.Sprintf("store ping failed: %v", err)}
		}
		return PhaseResult{Status: StatusPass, Message: "store reachable", Details: []string{"probe: ping"}}
	}
	if _, err := v.deps.Store.Collections(probeCtx); err != nil {
		return PhaseResult{Status: StatusFail, Message: fmt.Sprintf("store collections probe failed: %v", err)}
	}
	return PhaseResult{Status: StatusPass, Message: "store reachable", Details: []string{"probe: collections"}}
}

// registries checks the command catalog and tool registry carry at least
// the builtin surface, and that the agent factory exists.
func (v *Validator) registries(context.Context) PhaseResult {
	if v.deps.Catalog == nil {
		return PhaseResult{Status: StatusFail, Message: "tool catalog not constructed"}
	}
	entries := v.deps.Catalog.Entries()
	commands := tools.CommandNames()
	if len(entries) < len(commands) {
		return PhaseResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("tool catalog underpopulated: %d tools for %d commands", len(entries), len(commands)),
		}
	}
	if v.deps.Factory == nil {
		return PhaseResult{Status: StatusFail, Message: "agent factory not constructed"}
	}
	return PhaseResult{
		Status:  StatusPass,
		Message: "catalogs populated",
		Details: []string{
			fmt.Sprintf("tools: %d", len(entries)),
			fmt.Sprintf("commands: %d", len(commands)),
		},
	}
}

// services runs a full health sweep. An unhealthy core service is fatal;
// anything else degrades to a warning.
func (v *Validator) services(ctx context.Context) PhaseResult {
	if v.deps.Registry == nil {
		return PhaseResult{Status: StatusFail, Message: "service registry not constructed"}
	}
	results := v.deps.Registry.CheckAll(ctx)

	healthy, unhealthy := 0, 0
	var coreFailures, details []string
	for name, h := range results {
		if h.Healthy() || h.Status == domain.HealthStatusDisabled {
			healthy++
			continue
		}
		unhealthy++
		details = append(details, fmt.Sprintf("%s: %s", name, h.ErrorMessage))
		if def, err := v.deps.Registry.Definition(name); err == nil && def.ServiceType == domain.ServiceTypeCore {
			coreFailures = append(coreFailures, name)
		}
	}

	summary := fmt.Sprintf("%d healthy, %d unhealthy of %d services", healthy, unhealthy, len(results))
	if len(coreFailures) > 0 {
		return PhaseResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("core services unhealthy: %s", strings.Join(coreFailures, ", ")),
			Details: details,
		}
	}
	if unhealthy > 0 {
		return PhaseResult{Status: StatusWarn, Message: summary, Details: details}
	}
	return PhaseResult{Status: StatusPass, Message: summary}
}

// agents creates the canonical diagnostic agent and confirms the router
// exists.
func (v *Validator) agents(ctx context.Context) PhaseResult {
	if v.deps.Factory == nil {
		return PhaseResult{Status: StatusFail, Message: "agent factory not constructed"}
	}
	if err := v.deps.Factory.CreateAgent(ctx, registry.DiagnosticAgentName); err != nil {
		return PhaseResult{Status: StatusFail, Message: fmt.Sprintf("diagnostic agent creation failed: %v", err)}
	}
	if v.deps.Router == nil {
		return PhaseResult{Status: StatusFail, Message: "message router not constructed"}
	}
	return PhaseResult{Status: StatusPass, Message: "diagnostic agent and router ready"}
}

// postInit confirms readiness: cache loaded, the help command resolves, and
// the process is not already straining.
func (v *Validator) postInit(context.Context) PhaseResult {
	var details []string
	status := StatusPass

	if v.deps.Cache != nil && !v.deps.Cache.IsInitialized() {
		return PhaseResult{Status: StatusFail, Message: "team cache not initialized"}
	}
	if _, ok := tools.CommandByName("help"); !ok {
		return PhaseResult{Status: StatusFail, Message: "smoke check failed: /help does not resolve"}
	}
	details = append(details, "smoke: /help resolves")

	if n := runtime.NumGoroutine(); n > 500 {
		status = StatusWarn
		details = append(details, fmt.Sprintf("goroutines already at %d", n))
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	if mem.Alloc > 512<<20 {
		status = StatusWarn
		details = append(details, fmt.Sprintf("heap already at %d MiB", mem.Alloc>>20))
	}

	return PhaseResult{Status: status, Message: "runtime ready", Details: details}
}
