//go:build bedrock

package main

import (
	"log/slog"

	"websearch/internal/adapter/provider"
	"websearch/internal/domain"
	"websearch/internal/infra/config"
)

func createBedrockAnswerer(cfg config.PerplexityConfig, log *slog.Logger) (domain.AnswerProvider, error) {
	return provider.NewBedrockClient(cfg, log)
}
