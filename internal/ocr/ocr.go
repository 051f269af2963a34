// Package ocr extracts English text from document images through a hosted
// vision model.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Provider names.
const (
	ProviderGateway = "gateway"
	ProviderGemini  = "gemini"
)

// requestTimeout bounds a single upstream extraction call.
const requestTimeout = 60 * time.Second

// SystemPrompt instructs the model to OCR, translate and structure.
const SystemPrompt = "You are an OCR expert. Extract all text from the provided document image IN ENGLISH ONLY. " +
	"If the document is in another language, translate it to English while extracting. " +
	"Maintain the structure and formatting as much as possible. " +
	"If you can identify specific fields like names, addresses, villages, districts, states, claim types, coordinates, or land areas, note them. " +
	"Return the raw extracted text first, then if possible, provide structured data in JSON format with fields: " +
	"claimantName, village, district, state, claimType, coordinates, area. ALL OUTPUT MUST BE IN ENGLISH."

// UserPrompt accompanies the image in the user turn.
const UserPrompt = "Extract all text from this document image in English and identify any FRA (Forest Rights Act) related information. " +
	"If the text is in another language, translate it to English."

// Image identifies the document to read.
type Image struct {
	URL      string
	FileName string
}

// Extractor turns a document image into text.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, img Image) (string, error)
}

// UpstreamError is a non-2xx answer from the model provider.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.Status, e.Body)
}

// NewHTTPClient returns a traced client with the extraction timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   requestTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// ParseStructured decodes the span from the first '{' to the last '}' of text
// as a JSON object. It returns nil when there is no such span or it does not
// parse.
func ParseStructured(text string) map[string]any {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
