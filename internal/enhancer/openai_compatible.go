package enhancer

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICompatible implements Enhancer against any OpenAI-compatible
// chat-completions endpoint using the official openai-go SDK. This is
// the alternate enhancer provider: point BaseURL at a different
// OpenAI-compatible deployment to use it instead of OpenAI itself.
type OpenAICompatible struct {
	client openai.Client
	model  string
}

// OpenAICompatibleConfig configures the OpenAICompatible enhancer.
type OpenAICompatibleConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// NewOpenAICompatible creates an enhancer backed by an OpenAI-compatible
// chat-completions API.
func NewOpenAICompatible(cfg OpenAICompatibleConfig) (*OpenAICompatible, error) {
	if cfg.APIKey == "" {
		return nil, wrapAPIError("openai_compatible", errNoAPIKey)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o"
	}

	return &OpenAICompatible{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (o *OpenAICompatible) Name() string { return "openai_compatible" }

func (o *OpenAICompatible) Enhance(ctx context.Context, text string) (*Result, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	text = truncate(text, 100000)

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(enhancementPrompt + text),
		},
		MaxTokens:   openai.Int(4000),
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		return nil, wrapAPIError("openai_compatible", err)
	}
	if len(resp.Choices) == 0 {
		return nil, wrapAPIError("openai_compatible", errEmptyResponse)
	}

	content := resp.Choices[0].Message.Content
	enhancedText, summary, keyPoints, topics, sentiment := parseSections(content)
	return &Result{
		EnhancedText: enhancedText,
		Summary:      summary,
		KeyPoints:    keyPoints,
		Topics:       topics,
		Sentiment:    sentiment,
		ModelUsed:    o.model,
	}, nil
}
