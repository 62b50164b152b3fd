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

	"websearch/internal/adapter/mcpserver"
	"websearch/internal/infra/config"
	"websearch/internal/infra/logger"
	"websearch/internal/infra/tracer"
)

// runServe exposes the pipeline as an MCP server on stdio.
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
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

	// stdout carries the MCP protocol; logs must stay off it.
	if cfg.Logger.Output == "stdout" {
		cfg.Logger.Output = "stderr"
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer closeLog()
	log = log.With("request_id", ulid.Make().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdown(context.Background())

	svc, cleanup, err := buildService(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := mcpserver.New(svc, version, cfg.Serve, log)
	if err != nil {
		return err
	}
	return srv.Serve()
}
