//go:build bedrock

package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"websearch/internal/domain"
	"websearch/internal/infra/config"
	"websearch/internal/infra/tracer"
)

// bedrockConverseAPI abstracts the Bedrock runtime for testability.
type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Compile-time interface assertion.
var _ domain.AnswerProvider = (*BedrockClient)(nil)

// BedrockClient implements domain.AnswerProvider via the AWS Bedrock
// Converse API, for deployments that reach Perplexity-class models
// through Bedrock instead of OpenRouter.
type BedrockClient struct {
	model       string
	citations   bool
	temperature float64
	maxTokens   int
	client      bedrockConverseAPI
	logger      *slog.Logger
}

// NewBedrockClient creates a client using the default AWS credential
// chain.
func NewBedrockClient(cfg config.PerplexityConfig, logger *slog.Logger) (*BedrockClient, error) {
	region := cfg.AWSRegion
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &BedrockClient{
		model:       cfg.Model,
		citations:   cfg.Citations,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      bedrockruntime.NewFromConfig(awsCfg),
		logger:      logger,
	}, nil
}

// newBedrockClientWithAPI creates a BedrockClient with an injected
// runtime (for testing).
func newBedrockClientWithAPI(cfg config.PerplexityConfig, api bedrockConverseAPI, logger *slog.Logger) *BedrockClient {
	return &BedrockClient{
		model:       cfg.Model,
		citations:   cfg.Citations,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      api,
		logger:      logger,
	}
}

// Answer implements domain.AnswerProvider.
func (c *BedrockClient) Answer(ctx context.Context, query string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "perplexity.answer")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("search.query", query),
		tracer.StringAttr("llm.model", c.model),
	)

	system := systemPrompt
	if c.citations {
		system += citationsPrompt
	}

	maxTokens := c.maxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.model),
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: system},
		},
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: query},
				},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(maxTokens)),
		},
	}
	if c.temperature > 0 {
		input.InferenceConfig.Temperature = aws.Float32(float32(c.temperature))
	}

	output, err := c.client.Converse(ctx, input)
	if err != nil {
		mapped := mapBedrockError(err)
		tracer.RecordError(span, mapped)
		return "", mapped
	}

	content := extractConverseText(output)
	if content == "" {
		content = emptyContentFallback
	}

	tracer.SetOK(span)
	c.logger.Debug("perplexity answer completed", "model", c.model, "gateway", "bedrock")

	return content, nil
}

// Model implements domain.AnswerProvider.
func (c *BedrockClient) Model() string { return c.model }

// Name implements domain.AnswerProvider.
func (c *BedrockClient) Name() string { return "bedrock" }

func extractConverseText(output *bedrockruntime.ConverseOutput) string {
	msg, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			return text.Value
		}
	}
	return ""
}

// mapBedrockError projects smithy API errors onto the HTTP status
// taxonomy so the retry layer treats throttling and service faults as
// retryable and credential problems as final.
func mapBedrockError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		msg := []byte(apiErr.ErrorMessage())
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return domain.NewStatusError(429, msg)
		case "ModelNotReadyException", "ServiceUnavailableException", "InternalServerException":
			return domain.NewStatusError(503, msg)
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			return domain.NewStatusError(403, msg)
		case "ValidationException", "ResourceNotFoundException":
			return domain.NewStatusError(400, msg)
		}
	}

	return domain.WrapOp("bedrock", err)
}
