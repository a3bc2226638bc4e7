// qahub is the terminal frontend for the QA team's backend: device-bound
// identity, streamed Jira workflows, result analysis and the endpoint
// coverage tree, as commands or as a full-screen UI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sercano/qahub/api"
	"github.com/sercano/qahub/config"
	"github.com/sercano/qahub/session"
	"github.com/sercano/qahub/store"
	"github.com/sercano/qahub/utils"
)

var (
	cfg        *config.Config
	stateStore *store.Store
	apiClient  *api.Client
	sess       *session.Manager
)

var rootCmd = &cobra.Command{
	Use:   "qahub",
	Short: "Terminal frontend for the QA backend",
	Long: `qahub drives the QA team's backend from the terminal.

It registers this device to a user, runs the streaming Jira workflows
(test generation, bug linking, cycle composition, API rerun), streams
result analyses, and renders the endpoint coverage tree. Run a single
subcommand, or start the full-screen UI with "qahub ui".`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// setup wires configuration, logging, state and the backend client before
// any subcommand runs
func setup(cmd *cobra.Command, args []string) error {
	godotenv.Load()

	cfg = config.Load()
	if issues := cfg.Validate(); len(issues) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(issues, "; "))
	}
	utils.SetLogger(utils.NewLogger(cfg.LogLevel, cfg.LogFormat))

	statePath := cfg.StatePath
	if statePath == "" {
		var err error
		if statePath, err = store.DefaultPath(); err != nil {
			return fmt.Errorf("resolving state path: %w", err)
		}
	}

	var err error
	if stateStore, err = store.Open(statePath); err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}

	apiClient = api.New(cfg, nil)
	sess = session.NewManager(apiClient, stateStore)
	apiClient.SetUserSource(sess)
	return nil
}

// requireUser validates the session against the backend and fails when no
// user is bound to this device
func requireUser(cmd *cobra.Command) error {
	sess.Validate(cmd.Context())
	if sess.User() == nil {
		return fmt.Errorf("this device is not registered; run \"qahub login --name <name>\" first")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
