package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"fraatlas/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// GatewayClient calls an OpenAI-compatible chat-completions endpoint.
type GatewayClient struct {
	url    string
	apiKey string
	model  string
	http   *http.Client
}

// NewGatewayClient returns a client for url authenticated with apiKey.
func NewGatewayClient(url, apiKey, model string, httpClient *http.Client) *GatewayClient {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &GatewayClient{url: url, apiKey: apiKey, model: model, http: httpClient}
}

func (g *GatewayClient) Name() string { return ProviderGateway }

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *GatewayClient) Extract(ctx context.Context, img Image) (text string, err error) {
	ctx, span := observability.StartClientSpan(ctx, "ai-gateway", "chat.completions",
		attribute.String("ai.model", g.model))
	defer func() { observability.EndSpan(span, err) }()

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: UserPrompt},
				{Type: "image_url", ImageURL: &imageRef{URL: img.URL}},
			}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &UpstreamError{Provider: ProviderGateway, Status: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", nil
	}
	return decoded.Choices[0].Message.Content, nil
}
