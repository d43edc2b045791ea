package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/kickai/kickai/internal/agent"
	"github.com/kickai/kickai/internal/bus"
	"github.com/kickai/kickai/internal/config"
	"github.com/kickai/kickai/internal/domain"
	"github.com/kickai/kickai/internal/fleet"
	"github.com/kickai/kickai/internal/gateway"
	otelpkg "github.com/kickai/kickai/internal/otel"
	"github.com/kickai/kickai/internal/registry"
	"github.com/kickai/kickai/internal/router"
	"github.com/kickai/kickai/internal/services"
	"github.com/kickai/kickai/internal/startup"
	"github.com/kickai/kickai/internal/store"
	"github.com/kickai/kickai/internal/teamcache"
	"github.com/kickai/kickai/internal/telemetry"
	"github.com/kickai/kickai/internal/tools"
)

const routerAgentName = "message_processor"

func runRuntime(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitWith(exitConfig)
	}

	logger, closer, err := telemetry.NewLogger(settings.HomeDir, settings.LogLevel, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		return exitWith(exitConfig)
	}
	defer closer.Close()
	slog.SetDefault(logger)
	logger.Info("startup phase", "phase", "config_loaded",
		"environment", settings.Environment, "fingerprint", settings.Fingerprint())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := otelpkg.Init(ctx, otelpkg.FromEnv(Version))
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		return exitWith(exitConfig)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()
	metrics, err := otelpkg.NewMetrics(provider.Meter)
	if err != nil {
		logger.Error("metric instruments failed", "error", err)
		return exitWith(exitRuntime)
	}

	eventBus := bus.New()

	st, err := openStore(ctx, settings, logger)
	if err != nil {
		logger.Error("store open failed", "error", err)
		return exitWith(exitRuntime)
	}
	defer st.Close()

	reg := newServiceRegistry(settings, logger)
	cache := teamcache.New(st, logger)

	players := services.NewPlayers(st, logger)
	members := services.NewMembers(st, logger)
	matches := services.NewMatches(st, players, logger)
	catalog := tools.NewCatalog(reg)
	factory := agent.NewFactory(settings.AI, catalog, logger)

	rtr, err := router.New(router.Config{
		Catalog: catalog,
		Cache:   cache,
		Players: players,
		Members: members,
		Agent:   routerAgent(ctx, factory, logger),
		Bus:     eventBus,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("router build failed", "error", err)
		return exitWith(exitRuntime)
	}

	var mockHub *fleet.MockHub
	var newTransport func(domain.Team) fleet.Transport
	if settings.UseMockTelegram {
		mockHub = fleet.NewMockHub()
		newTransport = func(t domain.Team) fleet.Transport {
			return mockHub.Transport(t.ID)
		}
		logger.Info("mock telegram transport enabled")
	}

	mgr := fleet.NewManager(fleet.Config{
		Cache:        cache,
		Router:       rtr,
		Bus:          eventBus,
		Logger:       logger,
		NewTransport: newTransport,
	})

	invites := services.NewInvites(services.InvitesConfig{
		Store:       st,
		Players:     players,
		Members:     members,
		SecretKey:   settings.InviteSecretKey,
		BotUsername: mgr.BotUsername,
		Logger:      logger,
	})
	comms := services.NewCommunications(mgr, cache, logger)

	if err := registerServices(ctx, reg, settings, logger, serviceSet{
		store:   st,
		players: players,
		members: members,
		matches: matches,
		invites: invites,
		comms:   comms,
		router:  rtr,
	}); err != nil {
		logger.Error("service registration failed", "error", err)
		return exitWith(exitRuntime)
	}

	if settings.Registry.HealthCheckEnabled {
		monitor := registry.NewMonitor(registry.MonitorConfig{
			Registry: reg,
			Bus:      eventBus,
			Logger:   logger,
			Interval: settings.Registry.HealthCheckInterval,
			OnResult: func(h domain.ServiceHealth) {
				metrics.HealthDuration.Record(ctx, h.ResponseTime.Seconds(),
					metric.WithAttributes(otelpkg.AttrService.String(h.Name)))
			},
		})
		if err := monitor.Start(ctx); err != nil {
			logger.Warn("health monitor failed to start", "error", err)
		} else {
			defer monitor.Stop()
		}
	}

	watcher := config.NewWatcher(settings, eventBus, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher failed to start", "error", err)
	}
	go reloadOnConfigChange(ctx, eventBus, cache, logger)

	if err := cache.Initialize(ctx); err != nil {
		logger.Error("team cache init failed", "error", err)
		return exitWith(exitRuntime)
	}

	report := startup.New(startup.Deps{
		Settings: settings,
		Store:    st,
		Registry: reg,
		Catalog:  catalog,
		Cache:    cache,
		Factory:  factory,
		Router:   rtr,
		Logger:   logger,
	}).Run(ctx)
	fmt.Print(report.Render())
	if report.Failed() {
		logger.Error("startup validation failed")
		return exitWith(exitConfig)
	}

	eligible, err := mgr.LoadTeams(ctx)
	if err != nil {
		logger.Error("team load failed", "error", err)
		return exitWith(exitRuntime)
	}
	mgr.StartAll(ctx)
	logger.Info("bot fleet started", "eligible_teams", eligible)
	metrics.WorkersRunning.Add(ctx, int64(mgr.RunningCount()))
	mgr.StartupBroadcast(ctx, "🤖 KICKAI bot is back online.")

	var hub *fleet.MockHub
	if settings.UseMockUI {
		hub = mockHub
	}
	gw := gateway.New(gateway.Config{
		Port:        settings.Port,
		Fleet:       mgr,
		Cache:       cache,
		Registry:    reg,
		Bus:         eventBus,
		MockHub:     hub,
		Version:     Version,
		Fingerprint: settings.Fingerprint(),
		Logger:      logger,
	})
	serverErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			serverErr <- err
		}
	}()
	logger.Info("gateway listening", "port", settings.Port)

	code := 0
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("gateway server error", "error", err)
		code = exitRuntime
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownGrace)
	defer cancel()
	mgr.ShutdownBroadcast(shutdownCtx, "🤖 KICKAI bot is going offline for maintenance.")
	mgr.StopAll(settings.ShutdownGrace)
	gw.Shutdown()
	logger.Info("shutdown complete")

	if code != 0 {
		return exitWith(code)
	}
	return nil
}

// openStore selects the document-store driver from settings.
func openStore(ctx context.Context, settings config.Settings, logger *slog.Logger) (store.Store, error) {
	switch backend := settings.Backend(); backend {
	case "memory":
		logger.Info("using in-memory datastore")
		return store.NewMemory(), nil
	case "sqlite":
		path := settings.SQLitePath
		if path == "" {
			path = store.DefaultSQLitePath()
		}
		db, err := store.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite store opened", "path", path)
		return db, nil
	case "firestore":
		fs, err := store.OpenFirestore(ctx, store.FirestoreConfig{
			ProjectID:       settings.FirebaseProjectID,
			CredentialsFile: settings.FirebaseCredentialsFile,
			CredentialsJSON: settings.FirebaseCredentialsJSON,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("firestore connected", "project", settings.FirebaseProjectID)
		return fs, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func newServiceRegistry(settings config.Settings, logger *slog.Logger) *registry.Registry {
	reg := registry.New(registry.Config{
		DefaultTimeout: settings.Registry.ServiceTimeout,
		Breaker: registry.BreakerConfig{
			FailureThreshold:  settings.Registry.CircuitBreakerThreshold,
			RecoveryTimeout:   settings.Registry.CircuitBreakerRecovery,
			HalfOpenMaxProbes: settings.Registry.HalfOpenMaxProbes,
		},
		Logger: logger,
	})
	reg.AddChecker(registry.StoreChecker{})
	reg.AddChecker(registry.PlayerServiceChecker{})
	reg.AddChecker(registry.TeamServiceChecker{})
	reg.AddChecker(registry.AgentChecker{})
	reg.AddChecker(registry.ExternalChecker{})
	return reg
}

// serviceSet bundles the constructed service instances for registration.
type serviceSet struct {
	store   store.Store
	players *services.Players
	members *services.Members
	matches *services.Matches
	invites *services.Invites
	comms   *services.Communications
	router  *router.Router
}

// registerServices populates the registry through the discovery pipeline,
// then layers any file-based service definitions on top.
func registerServices(ctx context.Context, reg *registry.Registry, settings config.Settings, logger *slog.Logger, set serviceSet) error {
	manifest := []registry.Constructor{
		{Name: "data_store", Build: func(context.Context) (any, error) { return set.store, nil }},
		{Name: tools.PlayerServiceName, Build: func(context.Context) (any, error) { return set.players, nil }},
		{Name: tools.TeamMemberServiceName, Build: func(context.Context) (any, error) { return set.members, nil }},
		{Name: tools.MatchServiceName, Build: func(context.Context) (any, error) { return set.matches, nil }},
		{Name: tools.InviteServiceName, Build: func(context.Context) (any, error) { return set.invites, nil }},
		{Name: tools.CommunicationServiceName, Build: func(context.Context) (any, error) { return set.comms, nil }},
		{Name: "message_router", Build: func(context.Context) (any, error) { return set.router, nil }},
	}

	composite := registry.CompositeDiscovery{
		Strategies: []registry.Discovery{
			registry.ModuleScanner{Manifest: manifest, Logger: logger},
		},
		Logger: logger,
	}
	discovered, err := composite.Discover(ctx)
	if err != nil {
		return err
	}
	if err := registry.AutoRegister(reg, discovered); err != nil {
		return err
	}

	defs, err := config.LoadServiceDefinitions(settings.ServiceDefinitionDir)
	if err != nil {
		logger.Warn("service definitions skipped", "error", err)
		return nil
	}
	for _, def := range defs {
		if err := reg.Register(def, nil); err != nil {
			if errors.Is(err, registry.ErrAlreadyRegistered) {
				continue
			}
			logger.Warn("service definition rejected", "service", def.Name, "error", err)
		}
	}
	return nil
}

// routerAgent constructs the NL processor the router consults for free-form
// text. A failure here degrades to deterministic routing, never aborts.
func routerAgent(ctx context.Context, factory *agent.Factory, logger *slog.Logger) router.Agent {
	if err := factory.CreateAgent(ctx, routerAgentName); err != nil {
		logger.Warn("nl agent unavailable, deterministic routing only", "error", err)
		return nil
	}
	proc, ok := factory.Agent(routerAgentName)
	if !ok {
		return nil
	}
	return proc
}

// reloadOnConfigChange applies advisory hot reload: team-scoped definition
// changes refresh one cache entry, anything else reloads the snapshot.
func reloadOnConfigChange(ctx context.Context, eventBus *bus.Bus, cache *teamcache.Cache, logger *slog.Logger) {
	sub := eventBus.Subscribe(bus.TopicConfigChanged)
	defer eventBus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Ch():
			if !ok {
				return
			}
			ce, ok := ev.Payload.(bus.ConfigEvent)
			if !ok {
				continue
			}
			if ce.TeamID != "" {
				if err := cache.RefreshTeam(ctx, ce.TeamID); err != nil {
					logger.Warn("team refresh failed", "team_id", ce.TeamID, "error", err)
				}
				continue
			}
			if err := cache.Initialize(ctx); err != nil {
				logger.Warn("team cache reload failed", "error", err)
			}
		}
	}
}
