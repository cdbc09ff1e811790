package llm

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"maestro/internal/providers"
)

// openAIClient speaks the Chat Completions API, used by OpenAI and by
// OpenAI-compatible hosts such as Together.
type openAIClient struct {
	client      openai.Client
	model       string
	temperature *float64
}

func newOpenAIClient(_ context.Context, ref ModelRef, opts Options) (Client, error) {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(ref.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if ref.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(ref.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &openAIClient{
		client:      openai.NewClient(reqOpts...),
		model:       ref.Model,
		temperature: opts.Temperature,
	}, nil
}

func (c *openAIClient) Generate(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemWithSchema(req)),
			openai.UserMessage(req.Prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", formatError(ModelRef{Model: c.model}, "no choices in response", errors.New("empty choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func init() {
	RegisterFactory(providers.OpenAI, newOpenAIClient)
	RegisterFactory(providers.Together, newOpenAIClient)
}
