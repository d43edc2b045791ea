package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kickai/kickai/internal/agent"
	"github.com/kickai/kickai/internal/config"
	"github.com/kickai/kickai/internal/startup"
	"github.com/kickai/kickai/internal/store"
	"github.com/kickai/kickai/internal/teamcache"
	"github.com/kickai/kickai/internal/telemetry"
	"github.com/kickai/kickai/internal/tools"
)

// Diagnostic phases: everything read-only, no fleet or gateway startup.
const doctorPhaseCount = 5

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run read-only diagnostic checks against the configured deployment",
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()
	out := cmd.OutOrStdout()

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitWith(exitConfig)
	}

	logger, closer, err := telemetry.NewLogger(settings.HomeDir, settings.LogLevel, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		return exitWith(exitConfig)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx := cmd.Context()
	st, err := openStore(ctx, settings, logger)
	if err != nil {
		fmt.Fprintf(out, "❌ store: %v\n", err)
		return exitWith(exitConfig)
	}
	defer st.Close()

	reg := newServiceRegistry(settings, logger)
	cache := teamcache.New(st, logger)
	catalog := tools.NewCatalog(reg)
	factory := agent.NewFactory(settings.AI, catalog, logger)

	report := startup.New(startup.Deps{
		Settings: settings,
		Store:    st,
		Registry: reg,
		Catalog:  catalog,
		Cache:    cache,
		Factory:  factory,
		Logger:   logger,
	}).RunPhases(ctx, doctorPhaseCount)
	fmt.Fprint(out, report.Render())

	probeStore(ctx, out, st)
	probeOllama(ctx, out, settings)

	if report.Failed() {
		return exitWith(exitConfig)
	}
	return nil
}

func probeStore(ctx context.Context, out io.Writer, st store.Store) {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	start := time.Now()
	if err := st.Ping(probeCtx); err != nil {
		fmt.Fprintf(out, "❌ store ping: %v\n", err)
		return
	}
	fmt.Fprintf(out, "✅ store ping: ok (%s)\n", time.Since(start).Round(time.Millisecond))
}

func probeOllama(ctx context.Context, out io.Writer, settings config.Settings) {
	if settings.AI.OllamaBaseURL == "" {
		fmt.Fprintln(out, "⚠️ ollama: not configured, NL processing disabled")
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, settings.AI.OllamaConnectionTimeout)
	defer cancel()
	supports, err := agent.SupportsTools(probeCtx, settings.AI.OllamaBaseURL, settings.AI.Model)
	switch {
	case err != nil:
		fmt.Fprintf(out, "❌ ollama: %v\n", err)
	case !supports:
		fmt.Fprintf(out, "⚠️ ollama: model %s reachable but does not support tool calling\n", settings.AI.Model)
	default:
		fmt.Fprintf(out, "✅ ollama: model %s supports tool calling\n", settings.AI.Model)
	}
}
