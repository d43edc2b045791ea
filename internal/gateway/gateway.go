// Package gateway is the operational HTTP surface: health probes for
// deployment, and the local mock Telegram UI used for development without
// real bot tokens.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kickai/kickai/internal/bus"
	"github.com/kickai/kickai/internal/fleet"
	"github.com/kickai/kickai/internal/registry"
	"github.com/kickai/kickai/internal/teamcache"
)

const shutdownTimeout = 5 * time.Second

// Fleet is the slice of the fleet manager the gateway reports on.
type Fleet interface {
	ListRunning() []string
	Status(teamID string) (fleet.State, bool)
}

// Config wires a Gateway.
type Config struct {
	Port     int
	Fleet    Fleet
	Cache    *teamcache.Cache
	Registry *registry.Registry
	Bus      *bus.Bus
	// MockHub enables the mock Telegram UI endpoints when non-nil.
	MockHub     *fleet.MockHub
	Version     string
	Fingerprint string
	Logger      *slog.Logger
}

// Gateway serves the HTTP surface.
type Gateway struct {
	cfg    Config
	logger *slog.Logger
	srv    *http.Server
}

// New builds the gateway and its routes.
func New(cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{cfg: cfg, logger: logger}
	g.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

// Handler returns the route table; exposed for tests.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/detailed", g.handleHealthDetailed)
	if g.cfg.MockHub != nil {
		mux.HandleFunc("POST /api/send_message", g.handleSendMessage)
		mux.HandleFunc("GET /api/chats/{chat_id}/messages", g.handleChatMessages)
	}
	if g.cfg.Bus != nil {
		mux.HandleFunc("GET /ws", g.handleWS)
	}
	return mux
}

// Start serves until Shutdown. Blocks; run it in its own goroutine.
func (g *Gateway) Start() error {
	g.logger.Info("gateway listening", "addr", g.srv.Addr)
	if err := g.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests for up to 5 seconds.
func (g *Gateway) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth is the load-balancer probe: degraded (503) when teams are
// configured but no worker is up.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	running := 0
	if g.cfg.Fleet != nil {
		running = len(g.cfg.Fleet.ListRunning())
	}
	teams := 0
	if g.cfg.Cache != nil {
		teams = len(g.cfg.Cache.AllTeamIDs())
	}

	status := "ok"
	code := http.StatusOK
	if teams > 0 && running == 0 {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":      status,
		"bot_running": running > 0,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleHealthDetailed adds per-worker liveness, registry stats, cache
// state and the configuration fingerprint.
func (g *Gateway) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	workers := map[string]string{}
	if g.cfg.Fleet != nil && g.cfg.Cache != nil {
		for _, teamID := range g.cfg.Cache.AllTeamIDs() {
			if state, ok := g.cfg.Fleet.Status(teamID); ok {
				workers[teamID] = string(state)
			} else {
				workers[teamID] = "not_started"
			}
		}
	}

	body := map[string]any{
		"workers":   workers,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   g.cfg.Version,
	}
	if g.cfg.Registry != nil {
		body["registry"] = g.cfg.Registry.Stats()
	}
	if g.cfg.Cache != nil {
		body["cache_initialized"] = g.cfg.Cache.IsInitialized()
	}
	if g.cfg.Fingerprint != "" {
		body["config_fingerprint"] = g.cfg.Fingerprint
	}

	running := 0
	if g.cfg.Fleet != nil {
		running = len(g.cfg.Fleet.ListRunning())
	}
	body["bot_running"] = running > 0
	body["status"] = "ok"
	if len(workers) > 0 && running == 0 {
		body["status"] = "degraded"
	}
	writeJSON(w, http.StatusOK, body)
}
