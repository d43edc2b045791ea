package registry

import (
	"context"
	"strings"
	"time"

	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/store"
)

// Capability interfaces advertised by services. Checkers dispatch on these
// instead of probing method names: a service that wants a liveness probe
// implements the matching interface.

// Pinger is a cheap liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionTester verifies end-to-end connectivity to a backing system.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// HealthReporter lets a service self-report beyond liveness.
type HealthReporter interface {
	HealthCheck(ctx context.Context) error
}

// AgentFactory constructs agents; the agent checker exercises it by creating
// the canonical diagnostic agent.
type AgentFactory interface {
	CreateAgent(ctx context.Context, name string) error
}

// MessageRouter is the routing capability the agent checker accepts in place
// of a factory.
type MessageRouter interface {
	Route(ctx context.Context, msg domain.RoutedMessage) domain.Reply
}

// playerDirectory is the minimum surface a player service must expose.
type playerDirectory interface {
	PlayerByTelegramID(ctx context.Context, teamID string, telegramID int64) (*domain.Player, error)
}

// memberDirectory is the minimum surface a team-member service must expose.
type memberDirectory interface {
	MemberByTelegramID(ctx context.Context, teamID string, telegramID int64) (*domain.TeamMember, error)
}

func healthResult(status, probe, errMsg string, start time.Time) domain.ServiceHealth {
	h := domain.ServiceHealth{
		Status:       status,
		ResponseTime: time.Since(start),
		ErrorMessage: errMsg,
		Metadata:     map[string]string{"probe": probe},
	}
	return h
}

func fromProbeErr(probe string, err error, start time.Time) domain.ServiceHealth {
	if err != nil {
		return healthResult(domain.HealthStatusUnhealthy, probe, err.Error(), start)
	}
	return healthResult(domain.HealthStatusHealthy, probe, "", start)
}

// StoreChecker probes the document store service. It prefers an explicit
// Ping or TestConnection capability and otherwise accepts any instance
// satisfying the store port.
type StoreChecker struct{}

func (StoreChecker) Supports(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "store") || strings.Contains(lower, "database") || strings.Contains(lower, "firestore")
}

func (StoreChecker) Check(ctx context.Context, name string, instance any) domain.ServiceHealth {
	start := time.Now()
	switch v := instance.(type) {
	case Pinger:
		return fromProbeErr("ping", v.Ping(ctx), start)
	case ConnectionTester:
		return fromProbeErr("test_connection", v.TestConnection(ctx), start)
	case store.Store:
		// Satisfying the port implies the CRUD surface exists; a listing
		// exercises connectivity.
		_, err := v.Collections(ctx)
		return fromProbeErr("collections", err, start)
	default:
		return healthResult(domain.HealthStatusUnhealthy, "interface",
			"instance does not implement the store port", start)
	}
}

// PlayerServiceChecker verifies the player service surface and invokes an
// optional self-report.
type PlayerServiceChecker struct{}

func (PlayerServiceChecker) Supports(name string) bool {
	return strings.Contains(strings.ToLower(name), "player")
}

func (PlayerServiceChecker) Check(ctx context.Context, name string, instance any) domain.ServiceHealth {
	start := time.Now()
	if _, ok := instance.(playerDirectory); !ok {
		return healthResult(domain.HealthStatusUnhealthy, "interface",
			"instance does not implement the player service interface", start)
	}
	if hr, ok := instance.(HealthReporter); ok {
		return fromProbeErr("health_check", hr.HealthCheck(ctx), start)
	}
	return healthResult(domain.HealthStatusHealthy, "interface", "", start)
}

// TeamServiceChecker verifies the team-member service surface and invokes an
// optional self-report.
type TeamServiceChecker struct{}

func (TeamServiceChecker) Supports(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "team") || strings.Contains(lower, "member")
}

func (TeamServiceChecker) Check(ctx context.Context, name string, instance any) domain.ServiceHealth {
	start := time.Now()
	if _, ok := instance.(memberDirectory); !ok {
		return healthResult(domain.HealthStatusUnhealthy, "interface",
			"instance does not implement the team-member service interface", start)
	}
	if hr, ok := instance.(HealthReporter); ok {
		return fromProbeErr("health_check", hr.HealthCheck(ctx), start)
	}
	return healthResult(domain.HealthStatusHealthy, "interface", "", start)
}

// DiagnosticAgentName is the canonical agent the agent checker creates.
const DiagnosticAgentName = "diagnostic"

// AgentChecker probes agent-layer services: an AgentFactory is exercised by
// creating the diagnostic agent, a router by presence of the routing
// capability.
type AgentChecker struct{}

func (AgentChecker) Supports(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range []string{"agent", "crew", "router", "message"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (AgentChecker) Check(ctx context.Context, name string, instance any) domain.ServiceHealth {
	start := time.Now()
	if f, ok := instance.(AgentFactory); ok {
		return fromProbeErr("create_agent", f.CreateAgent(ctx, DiagnosticAgentName), start)
	}
	if _, ok := instance.(MessageRouter); ok {
		return healthResult(domain.HealthStatusHealthy, "router_interface", "", start)
	}
	return healthResult(domain.HealthStatusUnhealthy, "interface",
		"instance is neither an agent factory nor a router", start)
}

// ExternalChecker probes external collaborators: TestConnection first, then
// Ping, then a self-report.
type ExternalChecker struct{}

func (ExternalChecker) Supports(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range []string{"telegram", "firebase", "llm", "ollama", "client", "provider", "external"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (ExternalChecker) Check(ctx context.Context, name string, instance any) domain.ServiceHealth {
	start := time.Now()
	switch v := instance.(type) {
	case ConnectionTester:
		return fromProbeErr("test_connection", v.TestConnection(ctx), start)
	case Pinger:
		return fromProbeErr("ping", v.Ping(ctx), start)
	case HealthReporter:
		return fromProbeErr("health_check", v.HealthCheck(ctx), start)
	default:
		// Externals with no probe capability count as present-but-unknown.
		return healthResult(domain.HealthStatusUnknown, "none",
			"instance exposes no probe capability", start)
	}
}

// DefaultCheckers returns the standard plug-in set in precedence order.
// StoreChecker runs before ExternalChecker so "firestore" hits the store
// probe, and PlayerServiceChecker before TeamServiceChecker so
// "player_service" is not claimed by the team checker.
func DefaultCheckers() []Checker {
	return []Checker{
		StoreChecker{},
		PlayerServiceChecker{},
		TeamServiceChecker{},
		AgentChecker{},
		ExternalChecker{},
	}
}
