package llm

import (
	"context"
)

// Provider is the text-generation abstraction.
// Consumers call Generate with a Request and receive the generated text.
type Provider interface {
	// Generate sends a prompt to the model and returns its text response.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// ImageProvider is the image-generation abstraction.
type ImageProvider interface {
	// GenerateImage renders a single image for the prompt.
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the model.
type Request struct {
	// System is the system prompt. Sets the model's role and constraints.
	System string

	// Messages is the conversation history. Content generation is
	// single-turn, so this normally holds one user message.
	Messages []Message

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. Range: 0.0 - 2.0.
	// Default: 0.0 (deterministic) when not set.
	Temperature float64
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Response holds the model's text output.
type Response struct {
	Text string

	// Usage reports token consumption for this request as counted by
	// the provider.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens", "error"
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// ImageRequest describes a single image to render.
type ImageRequest struct {
	Prompt string

	// AspectRatio is passed through to providers that support it ("1:1", "4:3").
	// Empty means the provider default.
	AspectRatio string
}

// ImageResponse carries one rendered image. Providers fill Data when they
// return inline bytes and URL when they return a hosted reference.
type ImageResponse struct {
	Data     []byte
	MIMEType string
	URL      string
	Model    string
}

// Prompt joins the user messages of a request, for logging and for
// providers that take a single prompt string.
func (r Request) Prompt() string {
	var out string
	for _, m := range r.Messages {
		if m.Role != RoleUser {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += m.Content
	}
	return out
}
