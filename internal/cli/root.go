// Package cli is the texty command line: a terminal REPL plus commands to
// manage saved scenarios and serve the game over MCP.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/agenthands/texty/internal/app"
	"github.com/agenthands/texty/internal/config"
)

const Version = "0.1.0"

type wireFunc func(ctx context.Context, cfg *config.Config) (*app.App, error)

// opener loads configuration and wires the app for one command run.
type opener func(cmd *cobra.Command) (*app.App, error)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd(app.Wire).ExecuteContext(ctx)
}

func newRootCmd(wire wireFunc) *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "texty",
		Short:         "Play LLM-driven text adventures in the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", envOrDefault("CONFIG_PATH", "config/config.toml"), "path to the TOML config file")

	open := func(cmd *cobra.Command) (*app.App, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return wire(cmd.Context(), cfg)
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newSeedsCmd(),
		newPlayCmd(open),
		newListCmd(open),
		newHistoryCmd(open),
		newDeleteCmd(open),
		newMCPCmd(open),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		},
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
