package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"websearch/internal/adapter/history"
	"websearch/internal/adapter/output"
	"websearch/internal/infra/config"
)

// runHistory prints the most recent searches from the local query log.
func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		cfgPath string
		limit   int
		format  string
	)
	fs.StringVar(&cfgPath, "c", defaultConfigPath(), "config file path")
	fs.StringVar(&cfgPath, "config", defaultConfigPath(), "config file path")
	fs.IntVar(&limit, "n", 20, "number of entries to show")
	fs.StringVar(&format, "format", "text", "output format: json or text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !output.Format(format).Valid() {
		return fmt.Errorf("--format must be json or text")
	}

	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled in the configuration")
	}

	store, err := history.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	entries, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}

	printer := output.NewPrinter(os.Stdout, output.Format(format), false)
	return printer.PrintHistory(entries)
}
