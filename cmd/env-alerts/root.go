package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/i474232898/city-env-alerts/internal/chat"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "env-alerts",
		Short: "City environmental alerts aggregation and AI chat service",
		Long: `env-alerts serves per-location environmental snapshots built from six
AI-backed providers and answers resident questions through a live or general AI backend.

Without a subcommand it runs the HTTP service.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(newServeCmd(), newClassifyCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Long: `Run the HTTP service. Configuration is read from the environment and an
optional .env file in the working directory.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <query>",
		Short: "Show which AI backend a query would be routed to",
		Long: `Run the query classifier offline and print "live" or "general".

Examples:
  env-alerts classify "Who won the Colts game?"
  env-alerts classify How do I register to vote`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := chat.Classify(strings.Join(args, " "))
			_, err := fmt.Fprintln(cmd.OutOrStdout(), source)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// setupLogging configures the global zerolog logger.
func setupLogging(level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if strings.EqualFold(format, "console") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
