// Package email sends claim status notifications through the Resend API.
package email

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"fraatlas/internal/observability"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed templates/status_update.html
var templateFS embed.FS

var statusTemplate = template.Must(template.ParseFS(templateFS, "templates/status_update.html"))

var statusMessages = map[string]string{
	"approved":     "Your land claim has been approved! You can now proceed with the next steps.",
	"rejected":     "Your land claim has been rejected. Please review the remarks and submit a new claim if needed.",
	"under_review": "Your land claim is now being reviewed by our officials. You will be notified once the review is complete.",
	"pending":      "Your land claim has been received and is pending review.",
}

const defaultStatusMessage = "Your claim status has been updated."

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("email: sender not configured")

// StatusEmail is a claim status notification.
type StatusEmail struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	ClaimID  string `json:"claimId"`
	Status   string `json:"status"`
	Remarks  string `json:"remarks,omitempty"`
	UserName string `json:"userName"`
}

// SendResult is the provider's acknowledgement.
type SendResult struct {
	ID string `json:"id"`
}

// Sender delivers status emails.
type Sender interface {
	SendStatusUpdate(ctx context.Context, msg StatusEmail) (*SendResult, error)
}

// Client posts to the Resend emails endpoint.
type Client struct {
	apiURL string
	apiKey string
	from   string
	http   *http.Client
}

// NewClient returns a Resend client. httpClient may be nil.
func NewClient(apiURL, apiKey, from string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{apiURL: apiURL, apiKey: apiKey, from: from, http: httpClient}
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Subject returns msg.Subject or the default "Claim Status Update - <STATUS>".
func Subject(msg StatusEmail) string {
	if strings.TrimSpace(msg.Subject) != "" {
		return msg.Subject
	}
	return "Claim Status Update - " + strings.ToUpper(msg.Status)
}

// StatusMessage is the sentence shown to the claim owner for status.
func StatusMessage(status string) string {
	if message, ok := statusMessages[status]; ok {
		return message
	}
	return defaultStatusMessage
}

// RenderStatusHTML renders the status notification body.
func RenderStatusHTML(msg StatusEmail) (string, error) {
	message := StatusMessage(msg.Status)
	var buf bytes.Buffer
	err := statusTemplate.Execute(&buf, struct {
		UserName    string
		Message     string
		ClaimID     string
		StatusClass string
		StatusLabel string
		Remarks     string
	}{
		UserName:    msg.UserName,
		Message:     message,
		ClaimID:     msg.ClaimID,
		StatusClass: msg.Status,
		StatusLabel: strings.ReplaceAll(strings.ToUpper(msg.Status), "_", " "),
		Remarks:     msg.Remarks,
	})
	if err != nil {
		return "", fmt.Errorf("render status email: %w", err)
	}
	return buf.String(), nil
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (c *Client) SendStatusUpdate(ctx context.Context, msg StatusEmail) (result *SendResult, err error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(msg.To) == "" {
		return nil, errors.New("email: recipient required")
	}

	ctx, span := observability.StartClientSpan(ctx, "resend", "emails.send",
		attribute.String("claim.status", msg.Status))
	defer func() {
		outcome := "sent"
		if err != nil {
			outcome = "failed"
		}
		observability.EmailsSent.WithLabelValues(outcome).Inc()
		observability.EndSpan(span, err)
	}()

	html, err := RenderStatusHTML(msg)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{msg.To},
		Subject: Subject(msg),
		HTML:    html,
	})
	if err != nil {
		return nil, fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("email provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out SendResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode email response: %w", err)
		}
	}
	return &out, nil
}
