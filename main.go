package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"taskpad/commands"
	"taskpad/config"
	"taskpad/llm"
	"taskpad/notify"
	"taskpad/storage"
	"taskpad/tasklist"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "taskpad",
		Short:        "taskpad - a local task list driven by slash commands",
		Version:      Version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewEnvReader().Read()
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			if err := applyFlags(cmd, cfg); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("dir", "", "Data directory (env TASKPAD_DIR)")
	cmd.Flags().String("backend", "", "Storage backend: file, bolt or memory (env TASKPAD_BACKEND)")
	cmd.Flags().Bool("disable-markers", true, "Lock \"mark complete\" after first use (env TASKPAD_DISABLE_MARKERS)")
	cmd.Flags().String("log-level", "", "Log level (env TASKPAD_LOG_LEVEL)")
	cmd.Flags().String("watch", "", "Serve the change feed on this address, e.g. 127.0.0.1:7070 (env TASKPAD_WATCH_ADDR)")

	return cmd
}

// applyFlags overrides cfg with flags set on the command line
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("dir") {
		cfg.Dir, _ = flags.GetString("dir")
	}
	if flags.Changed("backend") {
		cfg.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("disable-markers") {
		cfg.DisableMarkers, _ = flags.GetBool("disable-markers")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("watch") {
		cfg.WatchAddr, _ = flags.GetString("watch")
	}

	return cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	commands.SetBaseLogLevel(level)

	// stdout carries command output, so logs go to stderr
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().
		Timestamp().
		Logger()
	log.Logger = logger

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ns, err := storage.Open(storage.Backend(cfg.Backend), cfg.Dir)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Backend, err)
	}
	defer func() {
		if err := ns.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close storage")
		}
	}()
	logger.Debug().Str("backend", cfg.Backend).Str("dir", cfg.Dir).Msg("storage opened")

	ctrl := tasklist.New(storage.NewAdapter(ns, logger), tasklist.Options{
		SupportDisablePersistence: cfg.DisableMarkers,
		Logger:                    logger,
	})
	ctrl.Initialize()
	commands.SetController(ctrl)

	client, err := llm.NewFromEnv(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("assistant disabled")
	} else {
		commands.SetLLMClient(client)
		defer client.Close()
	}

	if cfg.WatchAddr != "" {
		hub := notify.NewHub(ctrl.Snapshot, logger)
		defer ctrl.Subscribe(hub.Notify)()

		srv := notify.NewServer(cfg.WatchAddr, hub, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start change feed: %w", err)
		}
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("change feed shutdown")
			}
		}()
	}

	return repl(ctx, cfg.Dir)
}
