package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kickai/kickai/internal/config"
	"github.com/kickai/kickai/internal/teamcache"
	"github.com/kickai/kickai/internal/telemetry"
)

func newTeamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List configured teams (chat ids redacted)",
		RunE:  runTeams,
	}
}

func runTeams(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

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
		fmt.Fprintf(os.Stderr, "store: %v\n", err)
		return exitWith(exitRuntime)
	}
	defer st.Close()

	cache := teamcache.New(st, logger)
	if err := cache.Initialize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "load teams: %v\n", err)
		return exitWith(exitRuntime)
	}

	teams := cache.Teams()
	if len(teams) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No teams configured.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TEAM ID\tNAME\tSTATUS\tMAIN CHAT\tLEADERSHIP CHAT")
	for _, t := range teams {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.DisplayName(), t.Status,
			redactChatID(t.MainChatID), redactChatID(t.LeadershipChatID))
	}
	return w.Flush()
}

// redactChatID keeps the last four characters of a chat id so operators can
// match chats without the full id appearing in terminal history.
func redactChatID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) <= 4 {
		return "…" + id
	}
	return "…" + id[len(id)-4:]
}
