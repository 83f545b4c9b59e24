package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/trip-control-api/internal/bootstrap"
	"github.com/noah-isme/trip-control-api/pkg/config"
	"github.com/noah-isme/trip-control-api/pkg/logger"
)

// rootCmd is the admin entrypoint. It reads the same .env/environment as the API.
var rootCmd = &cobra.Command{
	Use:   "tripctl",
	Short: "Administrative tasks for the trip control API",
	Long: `tripctl runs the operations that have no HTTP surface: schema migrations,
account provisioning, one-off reconciliations, file imports and archive pruning.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("loglevel", "l", "", "Override LOG_LEVEL (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("loglevel"); level != "" {
		cfg.Log.Level = level
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logr, nil
}

// openApp wires every service. Callers must Close the returned app.
func openApp(ctx context.Context, cmd *cobra.Command) (*bootstrap.App, error) {
	cfg, logr, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(ctx, cfg, logr)
}
