package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petems/rolling-sampler/internal/config"
	"github.com/petems/rolling-sampler/internal/hotkey"
	"github.com/petems/rolling-sampler/internal/logging"
	"github.com/petems/rolling-sampler/internal/notify"
	"github.com/petems/rolling-sampler/internal/permissions"
	"github.com/petems/rolling-sampler/internal/recorder"
	"github.com/petems/rolling-sampler/internal/tray"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var _ tray.Controller = (*recorder.Recorder)(nil)

func runTray(cmd *cobra.Command, opts *rootOptions, version, commit string) error {
	v := config.NewViper(opts.path())
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log := logging.NewWithLevel(level)

	// First run: write the defaults so there is a file to edit and watch.
	if _, err := os.Stat(cfg.File()); os.IsNotExist(err) {
		if err := cfg.Save(); err != nil {
			log.Warn().Err(err).Str("path", cfg.File()).Msg("Failed to write default config")
		}
	}

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsurePermissions(); err != nil {
		return err
	}

	backend, err := openBackend()
	if err != nil {
		return fmt.Errorf("failed to initialize audio: %w", err)
	}
	defer backend.Close()

	var pub notify.Publisher = notify.Nop{}
	if cfg.Notify.NATSURL != "" {
		p, err := notify.Connect(cfg.Notify.NATSURL, cfg.Notify.Subject, log)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.Notify.NATSURL).Msg("Save notifications disabled")
		} else {
			pub = p
		}
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create tray UI first (the recorder reports status to it)
	trayUI := tray.New(nil, log, version, commit, cancel)

	rec := recorder.New(recorder.Config{
		Backend:       backend,
		Config:        cfg,
		Logger:        log,
		StatusUpdater: trayUI,
		Publisher:     pub,
	})
	trayUI.SetController(rec)

	if err := rec.Start(); err != nil {
		if shutdownErr := rec.Shutdown(context.Background()); shutdownErr != nil {
			log.Warn().Err(shutdownErr).Msg("Cleanup after failed start")
		}
		return fmt.Errorf("failed to start capture: %w", err)
	}

	hkManager, err := hotkey.New()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize hotkeys")
	} else {
		defer hkManager.Close()
		if err := hkManager.Register(cfg.PlatformHotkey(), rec.OnHotkey); err != nil {
			log.Warn().Err(err).Str("hotkey", cfg.PlatformHotkey()).Msg("Hotkey not registered, use the tray menu")
		}
	}

	config.Watch(v, func(next *config.Config, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring invalid config change")
			return
		}
		rec.ApplyConfig(next)
	})

	log.Info().Str("version", version).Str("config", cfg.File()).Msg("Rolling sampler starting...")

	// Start tray UI - MUST run on main thread
	runErr := trayUI.Run(ctx)

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := rec.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	return runErr
}
