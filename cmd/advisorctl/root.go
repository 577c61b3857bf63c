package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/policy-advisor/internal/bootstrap"
	"github.com/kirillkom/policy-advisor/internal/config"
	"github.com/kirillkom/policy-advisor/internal/observability/logging"
	"github.com/kirillkom/policy-advisor/internal/observability/metrics"
)

const serviceName = "advisorctl"

type cliState struct {
	logLevel string
	out      io.Writer
}

func newRootCommand() *cobra.Command {
	state := &cliState{out: os.Stdout}
	cmd := &cobra.Command{
		Use:           "advisorctl",
		Short:         "Query uploaded policy wordings and the policy catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "Override LOG_LEVEL")

	cmd.AddCommand(
		newSeedCatalogCommand(state),
		newIngestCommand(state),
		newProcessCommand(state),
		newDocumentsCommand(state),
		newAskCommand(state),
		newExplainCommand(state),
		newClaimCommand(state),
		newGapsCommand(state),
		newDiscoverCommand(state),
		newRankCommand(state),
		newCompareCommand(state),
		newChatCommand(state),
		newSessionsCommand(state),
		newConditionsCommand(state),
	)
	return cmd
}

// withApp wires the application for one command run. Logs go to stderr so
// stdout carries only command output.
func (s *cliState) withApp(cmd *cobra.Command, run func(app *bootstrap.App) error) error {
	cfg := config.Load()
	if s.logLevel != "" {
		cfg.LogLevel = s.logLevel
	}
	slog.SetDefault(logging.New(os.Stderr, serviceName, cfg.LogLevel, "text"))

	app, err := bootstrap.New(cmd.Context(), cfg, metrics.NewAdvisorMetrics(serviceName))
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()
	return run(app)
}

func (s *cliState) printJSON(v any) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
