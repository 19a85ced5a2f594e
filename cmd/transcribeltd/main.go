package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/daemon"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var roleFlag string
	var envFile string

	cmd := &cobra.Command{
		Use:           "transcribeltd",
		Short:         "Run TranscriBelt ingress, worker, and summary consumer roles",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
			roles, err := daemon.ParseRoles(roleFlag)
			if err != nil {
				return err
			}
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cfg, roles)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVarP(&roleFlag, "role", "r", envOr("TRANSCRIBELT_ROLES", "all"), "Roles to run: all, or a comma list of ingress, worker, consumer")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before the config")
	return cmd
}

// run blocks until ctx is cancelled, then shuts the daemon down.
func run(ctx context.Context, cfg *config.Config, roles daemon.Roles) error {
	logger, err := logging.NewFromConfig(cfg, config.DaemonLogFile)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	d, err := daemon.New(ctx, cfg, roles, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	logger.Info("transcribeltd running",
		logging.String("roles", roles.String()),
		logging.String("address", d.Addr()),
		logging.String(logging.FieldEventType, "daemon_running"),
	)

	<-ctx.Done()
	logger.Info("transcribeltd shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// loadEnvFile applies KEY=VALUE pairs without overriding the environment.
// A missing file is fine.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
