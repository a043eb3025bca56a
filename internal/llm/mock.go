package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// MockResponse is a canned text response for the MockProvider.
type MockResponse struct {
	Text  string
	Usage Usage
	Err   error
}

// MockImageResponse is a canned image response for the MockProvider.
type MockImageResponse struct {
	Data     []byte
	MIMEType string
	URL      string
	Err      error
}

// MockProvider is a deterministic Provider and ImageProvider for testing.
// It returns canned responses in FIFO order and records all requests.
// In echo mode an empty queue produces a synthetic answer instead of an
// error, which is what the "mock" provider setting uses.
type MockProvider struct {
	mu             sync.Mutex
	responses      []MockResponse
	imageResponses []MockImageResponse
	echo           bool

	Calls      []Request
	ImageCalls []ImageRequest
}

var (
	_ Provider      = (*MockProvider)(nil)
	_ ImageProvider = (*MockProvider)(nil)
)

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// NewEchoProvider creates a MockProvider that answers every request without
// network access. Text responses restate the prompt; images are a 1x1 PNG.
func NewEchoProvider() *MockProvider {
	return &MockProvider{echo: true}
}

// Generate returns the next canned response or ErrProviderUnavailable if
// the queue is empty.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if len(m.responses) == 0 {
		if m.echo {
			return echoResponse(req), nil
		}
		return nil, &ErrProviderUnavailable{Err: nil}
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]

	if resp.Err != nil {
		return nil, resp.Err
	}

	return &Response{
		Text:       resp.Text,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

// GenerateImage returns the next canned image or ErrProviderUnavailable if
// the image queue is empty.
func (m *MockProvider) GenerateImage(_ context.Context, req ImageRequest) (*ImageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ImageCalls = append(m.ImageCalls, req)

	if len(m.imageResponses) == 0 {
		if m.echo {
			return &ImageResponse{Data: placeholderPNG(), MIMEType: "image/png", Model: "mock"}, nil
		}
		return nil, &ErrProviderUnavailable{Err: nil}
	}

	resp := m.imageResponses[0]
	m.imageResponses = m.imageResponses[1:]

	if resp.Err != nil {
		return nil, resp.Err
	}

	mime := resp.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return &ImageResponse{
		Data:     resp.Data,
		MIMEType: mime,
		URL:      resp.URL,
		Model:    "mock",
	}, nil
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// AddImageResponse appends a canned image response to the queue.
func (m *MockProvider) AddImageResponse(resp MockImageResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imageResponses = append(m.imageResponses, resp)
}

// CallCount returns the number of Generate calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// ImageCallCount returns the number of GenerateImage calls made.
func (m *MockProvider) ImageCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ImageCalls)
}

func echoResponse(req Request) *Response {
	prompt := req.Prompt()
	text := fmt.Sprintf("# Sample content\n\nThis is offline sample output. It was generated for the request below.\n\n> %s\n",
		strings.ReplaceAll(strings.TrimSpace(prompt), "\n", "\n> "))
	words := len(strings.Fields(text))
	return &Response{
		Text:       text,
		Usage:      Usage{InputTokens: len(strings.Fields(prompt)), OutputTokens: words, TotalTokens: len(strings.Fields(prompt)) + words},
		Model:      "mock",
		StopReason: "end",
	}
}

const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func placeholderPNG() []byte {
	b, _ := base64.StdEncoding.DecodeString(onePixelPNG)
	return b
}
