package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.1-dev"

// Exit codes: 0 clean, 1 configuration or validation failure, 2 fatal
// runtime error.
const (
	exitConfig  = 1
	exitRuntime = 2
)

// exitError carries an explicit process exit code up to main. The message
// has already been printed by the time it is returned.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

func exitWith(code int) error {
	return &exitError{code: code}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kickai",
		Short:         "Multi-tenant Telegram bot runtime for grassroots football teams",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRuntime,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start the bot runtime (default)",
			RunE:  runRuntime,
		},
		newDoctorCmd(),
		newTeamsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the runtime version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "kickai %s\n", Version)
			},
		},
	)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfig)
	}
}
