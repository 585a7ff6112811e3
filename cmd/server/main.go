package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/andy6609/line-relay/internal/app"
	"github.com/andy6609/line-relay/internal/config"
	"github.com/andy6609/line-relay/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:           "line-relay",
		Short:         "TCP line-oriented chat relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			boot := log.New("info", "console")

			cfg, path, err := config.Load(boot, configPath, cmd.Flags())
			if err != nil {
				boot.Error().Err(err).Msg("failed to load config")
				return err
			}

			logger := log.New(cfg.LogLevel, cfg.LogFormat)
			logger.Info().Str("config", path).Str("addr", cfg.Addr()).Str("admin_addr", cfg.AdminAddr).Msg("starting relay")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.New(cfg, logger).Run(ctx); err != nil {
				logger.Error().Err(err).Msg("relay exited with error")
				return err
			}
			logger.Info().Msg("relay stopped")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "path to config file (.yaml, or legacy .txt)")
	f.String("host", defaults.Host, "listen host")
	f.Int("port", defaults.Port, "listen port")
	f.String("admin-addr", defaults.AdminAddr, "admin HTTP listen address, empty to disable")
	f.String("log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	f.String("log-format", defaults.LogFormat, "log format (console or json)")
	f.Int("workers", defaults.Workers, "number of routing workers")

	return cmd
}
