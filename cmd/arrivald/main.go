// arrivald watches for device arrival notifications and logs the name of the
// tracked target that fired each one.
//
// Usage:
//
//	arrivald --config arrivald.yaml
//	arrivald --data-dir /var/lib/arrivald --addr :9090 --log-level debug
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nkkko/arrivald/internal/config"
	"github.com/nkkko/arrivald/internal/engine"
	"github.com/nkkko/arrivald/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configFile string
		dataDir    string
		addr       string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "arrivald",
		Short:         "Report which tracked device fired an arrival event",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile, dataDir, addr, logLevel)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a YAML, TOML or JSON config file")
	flags.StringVar(&dataDir, "data-dir", "", "Directory for persistent state")
	flags.StringVar(&addr, "addr", "", "HTTP listen address")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	if err := logging.Setup(cfg.ToLoggingConfig()); err != nil {
		return err
	}

	e, err := engine.CreateEngine(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := e.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
		if runErr == nil {
			runErr = err
		}
	}

	return runErr
}
