package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"coursebuilder/internal/aigen"
	"coursebuilder/internal/config"
	appLog "coursebuilder/internal/log"
	"coursebuilder/internal/storage"
	"coursebuilder/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	flushNow   bool
}

func main() {
	appLog.Info("coursebuilder starting", "version", "0.1.0-dev")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"data_path", conf.DataPath,
		"flush_cron", conf.FlushCron,
		"ai_endpoint_set", conf.AI.Endpoint != "",
		"ai_cooldown_s", conf.AI.CooldownSeconds,
	)

	store, err := storage.Open(conf.DataPath)
	if err != nil {
		appLog.Error("failed to open course store", err, "data_path", conf.DataPath)
		os.Exit(1)
	}

	if flags.flushNow {
		n, err := store.FlushDrafts()
		if err != nil {
			appLog.Error("draft flush failed", err)
			os.Exit(1)
		}
		appLog.Info("draft flush complete", "courses", n)
		return
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	// Autosave flush loop: staged section drafts are persisted on the
	// configured cron schedule.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.FlushCron, func() {
		n, err := store.FlushDrafts()
		if err != nil {
			appLog.Error("autosave flush failed", err)
		}
		if n > 0 {
			appLog.Info("autosave flush complete", "courses", n)
		}
	}); err != nil {
		appLog.Error("invalid flush cron expression", err, "flush_cron", conf.FlushCron)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	runner := aigen.NewRunner(conf.AI)
	api := web.NewServer(conf, store, runner)

	srv := &http.Server{
		Addr:    conf.Listen,
		Handler: api.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("http shutdown failed", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("http server failed", err)
			os.Exit(1)
		}
	}

	// Persist whatever the autosave loop has not flushed yet.
	if n, err := store.FlushDrafts(); err != nil {
		appLog.Error("final draft flush failed", err)
	} else if n > 0 {
		appLog.Info("final draft flush complete", "courses", n)
	}

	appLog.Info("coursebuilder exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./var/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.flushNow, "flush-now", false, "Flush staged drafts once and exit")

	flag.Parse()

	return cfg
}
