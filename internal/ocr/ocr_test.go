package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructured(t *testing.T) {
	text := "Name: Ramesh\nVillage: Kanha\n```json\n{\"claimantName\": \"Ramesh\", \"village\": \"Kanha\", \"area\": 1.5}\n```"
	got := ParseStructured(text)
	require.NotNil(t, got)
	assert.Equal(t, "Ramesh", got["claimantName"])
	assert.Equal(t, 1.5, got["area"])

	assert.Nil(t, ParseStructured("no json here"))
	assert.Nil(t, ParseStructured("broken {json"))
	assert.Nil(t, ParseStructured("} backwards {"))
	assert.Nil(t, ParseStructured("{not: valid}"))
}

func TestGatewayClient_Extract(t *testing.T) {
	var captured chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Village: Kanha"}}]}`))
	}))
	defer srv.Close()

	client := NewGatewayClient(srv.URL, "secret", "google/gemini-2.5-flash", srv.Client())
	text, err := client.Extract(context.Background(), Image{URL: "https://example.com/doc.png"})
	require.NoError(t, err)
	assert.Equal(t, "Village: Kanha", text)

	assert.Equal(t, "google/gemini-2.5-flash", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, SystemPrompt, captured.Messages[0].Content)
	parts, ok := captured.Messages[1].Content.([]any)
	require.True(t, ok)
	require.Len(t, parts, 2)
	imagePart := parts[1].(map[string]any)
	assert.Equal(t, "image_url", imagePart["type"])
	assert.Equal(t, "https://example.com/doc.png", imagePart["image_url"].(map[string]any)["url"])
}

func TestGatewayClient_UpstreamStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusPaymentRequired, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", status)
		}))

		client := NewGatewayClient(srv.URL, "k", "m", srv.Client())
		_, err := client.Extract(context.Background(), Image{URL: "https://example.com/a.png"})

		var upstream *UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, status, upstream.Status)
		assert.Equal(t, ProviderGateway, upstream.Provider)
		srv.Close()
	}
}

func TestGatewayClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	text, err := NewGatewayClient(srv.URL, "k", "m", srv.Client()).Extract(context.Background(), Image{URL: "u"})
	require.NoError(t, err)
	assert.Empty(t, text)
}

// localImages lets tests serve document images from httptest.
var localImages = ImagePolicy{AllowHTTP: true, AllowPrivate: true}

// pngHeader is enough for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestGeminiClient_Extract(t *testing.T) {
	var generateBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/image.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngHeader)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &generateBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Claimant: Sita Devi"}]}}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewGeminiClient(context.Background(), GeminiOptions{
		APIKey:      "test-key",
		Model:       "gemini-2.5-flash",
		BaseURL:     srv.URL + "/",
		HTTPClient:  srv.Client(),
		ImagePolicy: localImages,
	})
	require.NoError(t, err)

	text, err := client.Extract(context.Background(), Image{URL: srv.URL + "/image.png"})
	require.NoError(t, err)
	assert.Equal(t, "Claimant: Sita Devi", text)
	assert.Contains(t, generateBody, "systemInstruction")
}

func TestGeminiClient_RateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/image.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngHeader)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewGeminiClient(context.Background(), GeminiOptions{
		APIKey: "test-key", Model: "gemini-2.5-flash", BaseURL: srv.URL + "/", HTTPClient: srv.Client(),
		ImagePolicy: localImages,
	})
	require.NoError(t, err)

	_, err = client.Extract(context.Background(), Image{URL: srv.URL + "/image.png"})
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusTooManyRequests, upstream.Status)
	assert.Equal(t, ProviderGemini, upstream.Provider)
}

func TestImagePolicy_CheckURL(t *testing.T) {
	tests := []struct {
		name    string
		policy  ImagePolicy
		url     string
		allowed bool
	}{
		{"public https", ImagePolicy{}, "https://storage.fra-atlas.example/documents/1/patta.png", true},
		{"plain http", ImagePolicy{}, "http://storage.fra-atlas.example/patta.png", false},
		{"plain http allowed", ImagePolicy{AllowHTTP: true}, "http://storage.fra-atlas.example/patta.png", true},
		{"cloud metadata", ImagePolicy{AllowHTTP: true}, "http://169.254.169.254/latest/meta-data/", false},
		{"loopback", ImagePolicy{}, "https://127.0.0.1/patta.png", false},
		{"ipv6 loopback", ImagePolicy{}, "https://[::1]/patta.png", false},
		{"mapped loopback", ImagePolicy{}, "https://[::ffff:127.0.0.1]/patta.png", false},
		{"private range", ImagePolicy{}, "https://10.0.3.7/patta.png", false},
		{"shared address space", ImagePolicy{}, "https://100.64.1.1/patta.png", false},
		{"localhost name", ImagePolicy{}, "https://localhost:8080/storage/patta.png", false},
		{"file scheme", ImagePolicy{AllowPrivate: true}, "file:///etc/passwd", false},
		{"no host", ImagePolicy{}, "https:///patta.png", false},
		{"private allowed", localImages, "http://127.0.0.1:8080/storage/patta.png", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.policy.checkURL(tt.url)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrImageURLBlocked)
		})
	}
}

func TestDialControl_ResolvedAddresses(t *testing.T) {
	assert.ErrorIs(t, dialControl("tcp4", "127.0.0.1:443", nil), ErrImageURLBlocked)
	assert.ErrorIs(t, dialControl("tcp4", "169.254.169.254:80", nil), ErrImageURLBlocked)
	assert.ErrorIs(t, dialControl("tcp6", "[fe80::1]:443", nil), ErrImageURLBlocked)
	assert.ErrorIs(t, dialControl("tcp4", "192.168.1.20:443", nil), ErrImageURLBlocked)
	assert.NoError(t, dialControl("tcp4", "142.250.183.100:443", nil))
}

func TestGeminiClient_RefusesInternalImageHosts(t *testing.T) {
	var imageHits, generateHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/latest/meta-data/", func(w http.ResponseWriter, r *http.Request) {
		imageHits.Add(1)
		_, _ = w.Write(pngHeader)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		generateHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"secret"}]}}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewGeminiClient(context.Background(), GeminiOptions{
		APIKey: "test-key", Model: "gemini-2.5-flash", BaseURL: srv.URL + "/", HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	for _, target := range []string{
		srv.URL + "/latest/meta-data/",
		strings.Replace(srv.URL, "http://", "https://", 1) + "/latest/meta-data/",
	} {
		_, err = client.Extract(context.Background(), Image{URL: target})
		assert.ErrorIs(t, err, ErrImageURLBlocked, target)
	}
	assert.Zero(t, imageHits.Load())
	assert.Zero(t, generateHits.Load())
}

func TestImageFetcher_RejectsNonImageBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	defer srv.Close()

	_, _, err := newImageFetcher(localImages).fetch(context.Background(), srv.URL+"/patta.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected content type text/html")
}
