package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func newTestGeminiProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: server.URL},
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return &GeminiProvider{
		client:     client,
		model:      "gemini-2.0-flash",
		imageModel: "imagen-3.0-generate-002",
	}
}

func TestGeminiModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gemini-flash", "gemini-2.0-flash"},
		{"gemini-pro", "gemini-2.0-pro"},
		{"imagen", "imagen-3.0-generate-002"},
		{"gemini-2.0-flash", "gemini-2.0-flash"}, // Pass-through
	}
	for _, tt := range tests {
		got := resolveModel(tt.input, geminiModels)
		if got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestGeminiProvider_HappyPath(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "gemini-2.0-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"role":  "model",
						"parts": []map[string]any{{"text": "# Fractions\n\n1. What is 1/2 + 1/4?"}},
					},
					"finishReason": "STOP",
				},
			},
			"usageMetadata": map[string]any{
				"promptTokenCount":     30,
				"candidatesTokenCount": 12,
				"totalTokenCount":      42,
			},
		})
	}

	p := newTestGeminiProvider(t, handler)
	resp, err := p.Generate(context.Background(), Request{
		System:    "You are a helpful teacher.",
		Messages:  []Message{{Role: RoleUser, Content: "Write a worksheet."}},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(resp.Text, "# Fractions") {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 42 {
		t.Fatalf("expected 42 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if resp.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp.StopReason)
	}
}

func TestGeminiProvider_Unauthenticated(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    401,
				"message": "API key not valid",
				"status":  "UNAUTHENTICATED",
			},
		})
	}

	p := newTestGeminiProvider(t, handler)
	_, err := p.Generate(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "test"}},
		MaxTokens: 100,
	})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got: %T (%v)", err, err)
	}
}

func TestGeminiProvider_GenerateImage(t *testing.T) {
	png := placeholderPNG()
	handler := func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "imagen-3.0-generate-002:predict") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"predictions": []map[string]any{
				{
					"bytesBase64Encoded": base64.StdEncoding.EncodeToString(png),
					"mimeType":           "image/png",
				},
			},
		})
	}

	p := newTestGeminiProvider(t, handler)
	img, err := p.GenerateImage(context.Background(), ImageRequest{Prompt: "volcanoes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Fatalf("expected image/png, got %q", img.MIMEType)
	}
	if len(img.Data) != len(png) {
		t.Fatalf("expected %d bytes, got %d", len(png), len(img.Data))
	}
}

func TestGeminiProvider_GenerateImageEmpty(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictions":[]}`))
	}

	p := newTestGeminiProvider(t, handler)
	_, err := p.GenerateImage(context.Background(), ImageRequest{Prompt: "volcanoes"})
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse, got: %T (%v)", err, err)
	}
}

func TestMapStatus(t *testing.T) {
	base := errors.New("boom")

	if !errors.Is(mapStatus(http.StatusForbidden, base), ErrUnauthenticated) {
		t.Error("403 should map to ErrUnauthenticated")
	}
	var rl *ErrRateLimit
	if !errors.As(mapStatus(http.StatusTooManyRequests, base), &rl) {
		t.Error("429 should map to ErrRateLimit")
	}
	var unavail *ErrProviderUnavailable
	if !errors.As(mapStatus(http.StatusBadGateway, base), &unavail) {
		t.Error("502 should map to ErrProviderUnavailable")
	}
	for _, code := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity} {
		var bad *ErrBadRequest
		if !errors.As(mapStatus(code, base), &bad) {
			t.Errorf("%d should map to ErrBadRequest", code)
			continue
		}
		if bad.StatusCode != code {
			t.Errorf("StatusCode = %d, want %d", bad.StatusCode, code)
		}
	}
}
