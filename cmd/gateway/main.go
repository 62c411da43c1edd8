// Command gateway runs the metered chat relay.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/resolv-sh/resolv-gateway/internal/app"
	"github.com/resolv-sh/resolv-gateway/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var appCfg config.AppConfig

	rootCmd := &cobra.Command{
		Use:           "gateway",
		Short:         "Metered streaming chat relay",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&appCfg.ConfigPath, "config", "c", "", "path to config.yaml (default $GATEWAY_CONFIG or ./config.yaml)")

	rootCmd.AddCommand(serveCmd(&appCfg))
	rootCmd.AddCommand(migrateCmd(&appCfg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd(appCfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.RunServer(ctx, *appCfg)
		},
	}
}

func migrateCmd(appCfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return app.Migrate(ctx, *appCfg)
		},
	}
}
