//go:build !bedrock

package main

import (
	"fmt"
	"log/slog"

	"websearch/internal/domain"
	"websearch/internal/infra/config"
)

func createBedrockAnswerer(_ config.PerplexityConfig, _ *slog.Logger) (domain.AnswerProvider, error) {
	return nil, fmt.Errorf("bedrock provider requires build with -tags bedrock")
}
