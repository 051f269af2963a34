package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"fraatlas/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API directly, sending the image bytes inline.
type GeminiClient struct {
	client *genai.Client
	model  string
	images *imageFetcher
}

// GeminiOptions configures NewGeminiClient. BaseURL overrides the API host,
// which tests point at an httptest server. Images are downloaded under
// ImagePolicy, whose zero value only reaches public https hosts.
type GeminiOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	HTTPClient  *http.Client
	ImagePolicy ImagePolicy
}

// NewGeminiClient builds a Gemini API client.
func NewGeminiClient(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{
		client: client,
		model:  opts.Model,
		images: newImageFetcher(opts.ImagePolicy),
	}, nil
}

func (g *GeminiClient) Name() string { return ProviderGemini }

func (g *GeminiClient) Extract(ctx context.Context, img Image) (text string, err error) {
	ctx, span := observability.StartClientSpan(ctx, "gemini", "generate_content",
		attribute.String("ai.model", g.model))
	defer func() { observability.EndSpan(span, err) }()

	data, mimeType, err := g.images.fetch(ctx, img.URL)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(UserPrompt),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &UpstreamError{Provider: ProviderGemini, Status: apiErr.Code, Body: apiErr.Message}
		}
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return resp.Text(), nil
}
