package enhancer

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic implements Enhancer using Anthropic Claude. It is the
// primary enhancer back-end.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

// AnthropicConfig configures the Anthropic-backed enhancer.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewAnthropic creates an Anthropic enhancer.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, wrapAPIError("anthropic", errNoAPIKey)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	return &Anthropic{client: &client, model: model}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Enhance(ctx context.Context, text string) (*Result, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	text = truncate(text, 150000)

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 8000,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(enhancementPrompt + text)),
		},
	})
	if err != nil {
		return nil, wrapAPIError("anthropic", err)
	}

	var content string
	for _, block := range message.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	if content == "" {
		return nil, wrapAPIError("anthropic", errEmptyResponse)
	}

	enhancedText, summary, keyPoints, topics, sentiment := parseSections(content)
	return &Result{
		EnhancedText: enhancedText,
		Summary:      summary,
		KeyPoints:    keyPoints,
		Topics:       topics,
		Sentiment:    sentiment,
		ModelUsed:    a.model,
	}, nil
}
