package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"

	"websearch/internal/adapter/output"
	"websearch/internal/domain"
	"websearch/internal/infra/config"
	"websearch/internal/infra/logger"
	"websearch/internal/infra/tracer"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		case "version", "--version":
			fmt.Println("websearch " + version)
			return
		case "serve":
			if err := runServe(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "serve: %v\n", err)
				os.Exit(1)
			}
			return
		case "history":
			if err := runHistory(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "history: %v\n", err)
				os.Exit(1)
			}
			return
		case "tui":
			if err := runTUI(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "tui: %v\n", err)
				os.Exit(1)
			}
			return
		case "secret":
			if err := runSecret(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "secret: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	run(os.Args[1:])
}

func showUsage() {
	fmt.Println(`websearch - web search for the command line, MCP, and TUI

USAGE:
    websearch -e ENGINE [FLAGS] "query"
    websearch COMMAND [FLAGS]

ENGINES:
    brave        Brave Search keyword results
    perplexity   Synthesized answer with citations
    both         Brave and Perplexity merged
    fetch        Fetch one page and extract readable text (query is a URL)

FLAGS:
    -e, --engine ENGINE   Search engine (required)
    -c, --config PATH     Config file (default: ~/.websearch/config.yaml)
    --format json|text    Output format (default: json)
    --offset N            Pagination offset, Brave only
    --no-cache            Bypass the result cache

COMMANDS:
    serve         Serve the search tools over MCP stdio
    history       Show recent searches (-n 20)
    tui           Interactive search browser
    secret VALUE  Encrypt a config value with WEBSEARCH_CONFIG_KEY
    version       Print the version

ENVIRONMENT:
    BRAVE_API_KEY          Brave Search API key
    OPENROUTER_API_KEY     OpenRouter API key (perplexity engine)
    WEBSEARCH_CONFIG_KEY   Passphrase for enc: config values
    WEBSEARCH_*            Override individual config fields

EXAMPLES:
    websearch -e brave "golang generics"
    websearch -e both --format text "kubernetes operators"
    websearch -e fetch "https://go.dev/blog/"
    websearch serve
    websearch history -n 50`)
}

// searchFlags holds the parsed default-command invocation.
type searchFlags struct {
	engine  string
	config  string
	format  string
	offset  *int
	noCache bool
	query   string
}

func parseSearchFlags(args []string) (*searchFlags, error) {
	fs := flag.NewFlagSet("websearch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = showUsage

	var f searchFlags
	var offset int
	fs.StringVar(&f.engine, "e", "", "search engine")
	fs.StringVar(&f.engine, "engine", "", "search engine: brave, perplexity, both, or fetch")
	fs.StringVar(&f.config, "c", defaultConfigPath(), "config file path")
	fs.StringVar(&f.config, "config", defaultConfigPath(), "config file path")
	fs.StringVar(&f.format, "format", "json", "output format: json or text")
	fs.IntVar(&offset, "offset", 0, "pagination offset (brave only)")
	fs.BoolVar(&f.noCache, "no-cache", false, "bypass the result cache")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// An omitted offset and an explicit --offset 0 are different
	// requests, so presence matters, not just the value.
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "offset" {
			f.offset = &offset
		}
	})

	f.query = strings.TrimSpace(strings.Join(fs.Args(), " "))
	return &f, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".websearch", "config.yaml")
}

func run(args []string) {
	flags, err := parseSearchFlags(args)
	if err != nil {
		// The flag package already explained the problem on stderr.
		os.Exit(2)
	}

	engine := domain.Engine(flags.engine)
	if flags.engine == "" || !engine.Valid() {
		fmt.Fprint(os.Stderr, "ERROR: --engine must be one of brave, perplexity, both, fetch.\n")
		os.Exit(1)
	}
	if flags.query == "" {
		fmt.Fprint(os.Stderr, "ERROR: a search query is required.\n")
		os.Exit(1)
	}
	format := output.Format(flags.format)
	if !format.Valid() {
		fmt.Fprint(os.Stderr, "ERROR: --format must be json or text.\n")
		os.Exit(1)
	}

	// A .env next to the binary is a convenience for local use; real
	// environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(flags.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	if flags.noCache {
		cfg.Cache.Enabled = false
	}

	requireCredentials(cfg, engine)

	if err := executeSearch(flags, cfg, engine, format); err != nil {
		writeFailure(err)
		os.Exit(1)
	}
}

// requireCredentials rejects engines whose key is missing before any
// provider is built, with the message users' scripts already match on.
func requireCredentials(cfg *config.Config, engine domain.Engine) {
	braveMissing := cfg.Brave.APIKey == ""
	perplexityMissing := cfg.Perplexity.Provider != "bedrock" && cfg.Perplexity.APIKey == ""

	switch engine {
	case domain.EngineBrave:
		if braveMissing {
			fmt.Fprint(os.Stderr, "ERROR: BRAVE_API_KEY environment variable not found.\nPlease set it using: export BRAVE_API_KEY='your_key'\n")
			os.Exit(1)
		}
	case domain.EnginePerplexity:
		if perplexityMissing {
			fmt.Fprint(os.Stderr, "ERROR: OPENROUTER_API_KEY environment variable not found.\nPlease set it using: export OPENROUTER_API_KEY='your_key'\n")
			os.Exit(1)
		}
	case domain.EngineBoth:
		if braveMissing || perplexityMissing {
			fmt.Fprint(os.Stderr, "ERROR: Both BRAVE_API_KEY and OPENROUTER_API_KEY are required for 'both' engine.\n")
			os.Exit(1)
		}
	}
}

func executeSearch(flags *searchFlags, cfg *config.Config, engine domain.Engine, format output.Format) error {
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

	printer := output.NewPrinter(os.Stdout, format, false)

	switch engine {
	case domain.EngineBrave:
		res, err := svc.Search(ctx, flags.query, domain.SearchOptions{Offset: flags.offset})
		if err != nil {
			return err
		}
		return printer.PrintWeb(res)

	case domain.EnginePerplexity:
		res, err := svc.Answer(ctx, flags.query)
		if err != nil {
			return err
		}
		return printer.PrintAnswer(res)

	case domain.EngineBoth:
		// Partial failure shows up inside the merged result and still
		// exits 0; a completely healthy run looks the same shape.
		res := svc.SearchBoth(ctx, flags.query, domain.SearchOptions{Offset: flags.offset})
		return printer.PrintCombined(res)

	case domain.EngineFetch:
		res, err := svc.FetchPage(ctx, flags.query)
		if err != nil {
			return err
		}
		return printer.PrintPage(res)
	}

	return fmt.Errorf("unsupported engine %q", engine)
}

// writeFailure prints the stderr epilogue for a failed search, keyed by
// failure class.
func writeFailure(err error) {
	var statusErr *domain.StatusError
	var netErr net.Error

	switch {
	case errors.As(err, &statusErr):
		fmt.Fprintf(os.Stderr, "HTTP Error: %v\n", err)
		if statusErr.Body != "" {
			fmt.Fprintf(os.Stderr, "Response: %s\n", statusErr.Body)
		}
	case errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()):
		fmt.Fprintf(os.Stderr, "Timeout Error: Request took too long to respond.\n%v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Unexpected error: %v\n", err)
	}
}
