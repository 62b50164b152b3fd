package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"

	"websearch/internal/adapter/tui"
	"websearch/internal/infra/config"
	"websearch/internal/infra/logger"
)

// runTUI starts the interactive search browser.
func runTUI(args []string) error {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var cfgPath string
	fs.StringVar(&cfgPath, "c", defaultConfigPath(), "config file path")
	fs.StringVar(&cfgPath, "config", defaultConfigPath(), "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// The terminal belongs to the TUI; logs go to a file or nowhere.
	log := logger.Discard()
	if cfg.Logger.Output != "stderr" && cfg.Logger.Output != "stdout" && cfg.Logger.Output != "" {
		fileLog, closeLog, err := logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer closeLog()
		log = fileLog.With("request_id", ulid.Make().String())
	}

	svc, cleanup, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return tui.Run(ctx, tui.Deps{Service: svc, Logger: log})
}
