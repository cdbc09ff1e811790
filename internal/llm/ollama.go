package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"maestro/internal/providers"
)

// ollamaClient calls a self-hosted Ollama server; the schema goes in the
// request's format field.
type ollamaClient struct {
	client      *api.Client
	model       string
	temperature *float64
}

func newOllamaClient(_ context.Context, ref ModelRef, opts Options) (Client, error) {
	u, err := url.Parse(ref.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", ref.BaseURL, err)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ollamaClient{
		client:      api.NewClient(u, httpClient),
		model:       ref.Model,
		temperature: opts.Temperature,
	}, nil
}

func (o *ollamaClient) Generate(ctx context.Context, req Request) (string, error) {
	stream := false
	chatReq := &api.ChatRequest{
		Model:  o.model,
		Stream: &stream,
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, api.Message{Role: "system", Content: req.System})
	}
	chatReq.Messages = append(chatReq.Messages, api.Message{Role: "user", Content: req.Prompt})
	if req.Schema != nil {
		chatReq.Format = req.Schema.JSON()
	} else {
		chatReq.Format = []byte(`"json"`)
	}
	if o.temperature != nil {
		chatReq.Options = map[string]any{"temperature": *o.temperature}
	}

	var content string
	err := o.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func init() {
	RegisterFactory(providers.Ollama, newOllamaClient)
}
