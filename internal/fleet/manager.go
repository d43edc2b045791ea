// Package fleet runs one bot worker per configured team: lifecycle,
// reconnection, outbound sending, and startup/shutdown broadcasts.
package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kickai/kickai/internal/bus"
	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/teamcache"
)

// maxWorkerRestarts bounds how many times a failed worker is restarted
// before it stays failed.
const maxWorkerRestarts = 3

// Config wires a Manager.
type Config struct {
	Cache  *teamcache.Cache
	Router MessageRouter
	Bus    *bus.Bus
	Logger *slog.Logger

	// NewTransport builds the per-team transport. Defaults to the real
	// Telegram transport on the team's bot token.
	NewTransport func(team domain.Team) Transport
}

type supervised struct {
	worker *Worker
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns the bot workers, one per complete active team. A worker
// failing never takes down its siblings.
type Manager struct {
	cache        *teamcache.Cache
	router       MessageRouter
	bus          *bus.Bus
	logger       *slog.Logger
	newTransport func(team domain.Team) Transport

	mu      sync.Mutex
	teams   []domain.Team
	workers map[string]*supervised

	// tune adjusts a freshly built worker before it starts; tests use it to
	// shrink timers.
	tune func(*Worker)
}

// NewManager builds an idle manager; call LoadTeams then StartAll.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newTransport := cfg.NewTransport
	if newTransport == nil {
		newTransport = func(team domain.Team) Transport {
			return NewTelegramTransport(team.BotToken, logger)
		}
	}
	return &Manager{
		cache:        cfg.Cache,
		router:       cfg.Router,
		bus:          cfg.Bus,
		logger:       logger,
		newTransport: newTransport,
		workers:      make(map[string]*supervised),
	}
}

// LoadTeams selects the teams eligible for a worker: active status and a
// complete configuration. Incomplete teams are skipped with a warning, never
// an error; one broken tenant must not block the fleet.
func (m *Manager) LoadTeams(ctx context.Context) (int, error) {
	if !m.cache.IsInitialized() {
		if err := m.cache.Initialize(ctx); err != nil {
			return 0, err
		}
	}

	var eligible []domain.Team
	for _, t := range m.cache.Teams() {
		if t.Status != domain.TeamStatusActive {
			m.logger.Warn("team skipped: not active", "team_id", t.ID, "status", t.Status)
			continue
		}
		if !t.Complete() {
			m.logger.Warn("team skipped: incomplete configuration", "team_id", t.ID)
			continue
		}
		eligible = append(eligible, t)
	}

	m.mu.Lock()
	m.teams = eligible
	m.mu.Unlock()

	m.logger.Info("teams loaded", "eligible", len(eligible))
	return len(eligible), nil
}

// StartAll starts one supervised worker per loaded team. A worker that fails
// to start or crashes is restarted up to maxWorkerRestarts times, then left
// in the failed state; other teams keep running.
func (m *Manager) StartAll(ctx context.Context) {
	m.mu.Lock()
	teams := make([]domain.Team, len(m.teams))
	copy(teams, m.teams)
	m.mu.Unlock()

	for _, team := range teams {
		m.startTeam(ctx, team)
	}
}

func (m *Manager) startTeam(ctx context.Context, team domain.Team) {
	m.mu.Lock()
	if _, running := m.workers[team.ID]; running {
		m.mu.Unlock()
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	worker := NewWorker(team.ID, m.newTransport(team), m.router, m.bus, m.logger)
	if m.tune != nil {
		m.tune(worker)
	}
	sup := &supervised{worker: worker, cancel: cancel, done: make(chan struct{})}
	m.workers[team.ID] = sup
	m.mu.Unlock()

	go func() {
		defer close(sup.done)
		restarts := 0
		for {
			err := worker.Run(wctx)
			if wctx.Err() != nil || err == nil {
				return
			}
			restarts++
			if restarts > maxWorkerRestarts {
				m.logger.Error("bot worker failed permanently",
					"team_id", team.ID, "restarts", restarts-1, "error", err)
				return
			}
			m.logger.Warn("bot worker restarting",
				"team_id", team.ID, "attempt", restarts, "error", err)
		}
	}()
}

// StopAll cancels every worker and waits up to grace for them to drain.
func (m *Manager) StopAll(grace time.Duration) {
	m.mu.Lock()
	sups := make([]*supervised, 0, len(m.workers))
	for _, s := range m.workers {
		sups = append(sups, s)
		s.cancel()
	}
	m.workers = make(map[string]*supervised)
	m.mu.Unlock()

	deadline := time.After(grace)
	for _, s := range sups {
		select {
		case <-s.done:
		case <-deadline:
			m.logger.Warn("shutdown grace period expired, abandoning workers")
			return
		}
	}
}

// ListRunning returns the ids of teams whose worker is currently running,
// sorted.
func (m *Manager) ListRunning() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.workers {
		if s.worker.State() == StateRunning {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Status reports the lifecycle state of one team's worker.
func (m *Manager) Status(teamID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.workers[teamID]
	if !ok {
		return "", false
	}
	return s.worker.State(), true
}

// RunningCount returns how many workers are currently running.
func (m *Manager) RunningCount() int {
	return len(m.ListRunning())
}

// Send delivers text to a chat through the team's worker transport. This is
// the outbound path the communication service uses.
func (m *Manager) Send(ctx context.Context, teamID string, chatID int64, text string) error {
	m.mu.Lock()
	s, ok := m.workers[teamID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no bot worker for team %s", teamID)
	}
	return s.worker.transport.Send(ctx, chatID, text)
}

// BotUsername returns the bot username for a team, or "" when the worker is
// not up yet. Invite links embed this.
func (m *Manager) BotUsername(teamID string) string {
	m.mu.Lock()
	s, ok := m.workers[teamID]
	m.mu.Unlock()
	if !ok {
		return ""
	}
	return s.worker.transport.BotUsername()
}

// StartupBroadcast posts a message to every running team's leadership chat.
// Best effort: a failed send is logged, never fatal.
func (m *Manager) StartupBroadcast(ctx context.Context, text string) {
	m.broadcast(ctx, text)
}

// ShutdownBroadcast posts a message to every running team's leadership chat
// before the workers stop.
func (m *Manager) ShutdownBroadcast(ctx context.Context, text string) {
	m.broadcast(ctx, text)
}

func (m *Manager) broadcast(ctx context.Context, text string) {
	for _, teamID := range m.ListRunning() {
		raw := m.cache.LeadershipChatID(teamID)
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			m.logger.Warn("broadcast skipped: bad leadership chat id",
				"team_id", teamID, "chat_id", raw)
			continue
		}
		if err := m.Send(ctx, teamID, chatID, text); err != nil {
			m.logger.Warn("broadcast send failed", "team_id", teamID, "error", err)
		}
	}
}
