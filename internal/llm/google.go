package llm

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"maestro/internal/providers"
)

// googleClient calls the Gemini API with native structured output.
type googleClient struct {
	client      *genai.Client
	model       string
	temperature *float64
}

func newGoogleClient(ctx context.Context, ref ModelRef, opts Options) (Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:  ref.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if ref.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: ref.BaseURL}
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &googleClient{client: client, model: ref.Model, temperature: opts.Temperature}, nil
}

func (g *googleClient) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema.Genai(),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if g.temperature != nil {
		config.Temperature = genai.Ptr(float32(*g.temperature))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("gemini returned no text candidates")
	}
	return text, nil
}

func init() {
	RegisterFactory(providers.Google, newGoogleClient)
}
