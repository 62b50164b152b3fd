// Package mcpserver exposes the search pipeline as an MCP server over
// stdio, so agent runtimes can call the engines as tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/kaptinlin/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"

	"websearch/internal/domain"
	"websearch/internal/infra/config"
	"websearch/internal/usecase"
)

const serverName = "websearch"

// Tool names as advertised to MCP clients.
const (
	toolSearch   = "web_search"
	toolAnswer   = "web_answer"
	toolCombined = "web_search_combined"
	toolFetch    = "web_fetch"
)

// Argument schemas, one per tool. Arguments are validated against these
// before any provider is touched, so malformed calls fail fast with a
// tool-level error instead of a half-executed search.
const (
	searchSchemaJSON = `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "minLength": 1},
			"count": {"type": "integer", "minimum": 1, "maximum": 20},
			"offset": {"type": "integer", "minimum": 0}
		},
		"required": ["query"],
		"additionalProperties": false
	}`

	answerSchemaJSON = `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "minLength": 1}
		},
		"required": ["query"],
		"additionalProperties": false
	}`

	combinedSchemaJSON = `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "minLength": 1},
			"offset": {"type": "integer", "minimum": 0}
		},
		"required": ["query"],
		"additionalProperties": false
	}`

	fetchSchemaJSON = `{
		"type": "object",
		"properties": {
			"url": {"type": "string", "minLength": 1}
		},
		"required": ["url"],
		"additionalProperties": false
	}`
)

var toolSchemas = map[string]string{
	toolSearch:   searchSchemaJSON,
	toolAnswer:   answerSchemaJSON,
	toolCombined: combinedSchemaJSON,
	toolFetch:    fetchSchemaJSON,
}

// Server wraps the application service as an MCP stdio server. All
// tools share one rate limiter so a chatty client cannot exceed the
// configured call budget no matter which tool it hammers.
type Server struct {
	svc     *usecase.Service
	mcp     *server.MCPServer
	limiter *rate.Limiter
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger
}

// New builds a Server around svc and registers the four search tools.
func New(svc *usecase.Service, version string, cfg config.ServeConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		svc:    svc,
		logger: logger,
	}

	if cfg.RatePerMinute > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		// Spread the per-minute budget over 60 seconds.
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerMinute)/60.0, burst)
	}

	if err := s.compileSchemas(); err != nil {
		return nil, err
	}

	s.mcp = server.NewMCPServer(serverName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()

	return s, nil
}

// Serve answers MCP requests on stdio until the client disconnects.
func (s *Server) Serve() error {
	s.logger.Info("mcp server listening on stdio",
		"tools", len(s.schemas),
		"rate_limited", s.limiter != nil,
	)
	return server.ServeStdio(s.mcp)
}

func (s *Server) compileSchemas() error {
	compiler := jsonschema.NewCompiler()
	s.schemas = make(map[string]*jsonschema.Schema, len(toolSchemas))
	for name, doc := range toolSchemas {
		schema, err := compiler.Compile([]byte(doc))
		if err != nil {
			return fmt.Errorf("compile %s schema: %w", name, err)
		}
		s.schemas[name] = schema
	}
	return nil
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(toolSearch,
		mcp.WithDescription("Search the web with Brave Search. Returns a JSON list of results with title, url and description."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The search query.")),
		mcp.WithNumber("count", mcp.Description("Number of results to return (1-20).")),
		mcp.WithNumber("offset", mcp.Description("Zero-based page offset for pagination.")),
	), s.handleSearch)

	s.mcp.AddTool(mcp.NewTool(toolAnswer,
		mcp.WithDescription("Ask Perplexity for a synthesized answer with markdown citations."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to answer.")),
	), s.handleAnswer)

	s.mcp.AddTool(mcp.NewTool(toolCombined,
		mcp.WithDescription("Run Brave and Perplexity concurrently and merge the synthesized answer with source links. Either half may be marked failed while the other still returns data."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The search query.")),
		mcp.WithNumber("offset", mcp.Description("Zero-based page offset for the Brave half.")),
	), s.handleCombined)

	s.mcp.AddTool(mcp.NewTool(toolFetch,
		mcp.WithDescription("Fetch a single web page and extract its readable text."),
		mcp.WithString("url", mcp.Required(), mcp.Description("The http(s) URL to fetch.")),
	), s.handleFetch)
}

// acquire blocks until the shared limiter admits one more tool call.
func (s *Server) acquire(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// validateArgs checks the raw argument map against the tool's schema.
func (s *Server) validateArgs(tool string, args map[string]any) error {
	schema, ok := s.schemas[tool]
	if !ok {
		return fmt.Errorf("no schema registered for %q", tool)
	}
	if args == nil {
		args = map[string]any{}
	}
	result := schema.Validate(args)
	if !result.IsValid() {
		return fmt.Errorf("%s", result.Error())
	}
	return nil
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	args := req.GetArguments()
	if err := s.validateArgs(toolSearch, args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	query := req.GetString("query", "")
	opts := domain.SearchOptions{Count: req.GetInt("count", 0)}
	if _, ok := args["offset"]; ok {
		offset := req.GetInt("offset", 0)
		opts.Offset = &offset
	}

	s.logger.Debug("mcp tool call", "tool", toolSearch, "query", query)

	res, err := s.svc.Search(ctx, query, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(res)
}

func (s *Server) handleAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	if err := s.validateArgs(toolAnswer, req.GetArguments()); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	query := req.GetString("query", "")
	s.logger.Debug("mcp tool call", "tool", toolAnswer, "query", query)

	res, err := s.svc.Answer(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("answer failed: %v", err)), nil
	}
	return jsonResult(res)
}

func (s *Server) handleCombined(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	args := req.GetArguments()
	if err := s.validateArgs(toolCombined, args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	query := req.GetString("query", "")
	var opts domain.SearchOptions
	if _, ok := args["offset"]; ok {
		offset := req.GetInt("offset", 0)
		opts.Offset = &offset
	}

	s.logger.Debug("mcp tool call", "tool", toolCombined, "query", query)

	// Fan-out never fails outright: provider errors surface as the
	// failed/error fields of the merged result, so the client always
	// gets whichever half survived.
	return jsonResult(s.svc.SearchBoth(ctx, query, opts))
}

func (s *Server) handleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	if err := s.validateArgs(toolFetch, req.GetArguments()); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	rawURL := req.GetString("url", "")
	s.logger.Debug("mcp tool call", "tool", toolFetch, "url", rawURL)

	res, err := s.svc.FetchPage(ctx, rawURL)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed: %v", err)), nil
	}
	return jsonResult(res)
}

// jsonResult renders v as indented JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
