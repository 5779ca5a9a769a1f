package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Nomadcxx/anipar/internal/config"
	"github.com/Nomadcxx/anipar/internal/daemon"
	"github.com/Nomadcxx/anipar/internal/logging"
)

const version = "0.1.0-dev"

func main() {
	var cfgFile string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "anipard",
		Short:         "Watch an inbox for title lists and write parse reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

			load := func() (*config.Config, error) { return loadConfig(cfgFile) }
			return run(cmd.Context(), load, hup, verbose)
		},
	}
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/anipar/config.toml)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFrom(afero.NewOsFs(), path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// run keeps a daemon running until ctx is done. Each value on reload
// rereads the config and restarts the daemon with it; a bad config keeps
// the current one.
func run(ctx context.Context, load func() (*config.Config, error), reload <-chan os.Signal, verbose bool) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	if err := initLogging(cfg, verbose); err != nil {
		return err
	}
	log.Info().Str("version", version).Msg("anipard starting")

	for {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- daemon.New(cfg, nil, nil).Run(runCtx) }()

		select {
		case err := <-done:
			cancel()
			if err != nil {
				return err
			}
			log.Info().Msg("received shutdown signal, exiting gracefully")
			return nil

		case <-reload:
			log.Info().Msg("received SIGHUP, reloading configuration")
			newCfg, err := load()
			if err != nil {
				log.Error().Err(err).Msg("failed to reload config, keeping current one")
			} else {
				cfg = newCfg
				if err := initLogging(cfg, verbose); err != nil {
					log.Error().Err(err).Msg("failed to reconfigure logging")
				}
			}

			cancel()
			if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info().Str("inbox", cfg.Daemon.Inbox).Msg("daemon restarted")
		}
	}
}

func initLogging(cfg *config.Config, verbose bool) error {
	opts := logging.Options{Verbose: verbose}
	if verbose {
		opts.Console = logging.ConsoleWriter()
	}
	if err := logging.Init(cfg.Logging, opts); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	return nil
}
