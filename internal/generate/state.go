package generate

import (
	"errors"
	"fmt"
	"time"
)

// Kind names the two kinds of output a controller produces.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// User-facing messages.
const (
	MsgMissingFields = "Please fill in all required fields"
	MsgInvalidGrade  = "Please choose a grade from 1st to 5th"
	MsgMissingTopic  = "Please enter a topic first"
	MsgTextFallback  = "An error occurred while generating content"
	MsgImageFallback = "An error occurred while generating the image"
)

const (
	DefaultCount       = 5
	DefaultTimeout     = 60 * time.Second
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.7
)

const (
	imagePromptFormat   = "Create a child-friendly, educational illustration about %s suitable for primary school students. The image should be colorful, engaging, and educational."
	defaultSystemPrompt = "You are a helpful assistant for primary school teachers. Answer in Markdown with short headings and lists where they help."
	imageAspectRatio    = "1:1"
)

// Phase is the controller's position in Idle -> Loading -> Succeeded|Failed.
// The set of implementations is closed.
type Phase interface {
	isPhase()
	String() string
}

// Idle is the phase before any attempt.
type Idle struct{}

// Loading is the phase while an attempt awaits the endpoint.
type Loading struct {
	Kind  Kind
	Since time.Time
}

// Succeeded is the phase after an attempt stored its result.
type Succeeded struct {
	Kind Kind
}

// Failed is the phase after validation or the endpoint rejected an attempt.
type Failed struct {
	Kind    Kind
	Err     error
	Message string
}

func (Idle) isPhase()      {}
func (Loading) isPhase()   {}
func (Succeeded) isPhase() {}
func (Failed) isPhase()    {}

func (Idle) String() string        { return "idle" }
func (p Loading) String() string   { return "loading " + string(p.Kind) }
func (p Succeeded) String() string { return "succeeded " + string(p.Kind) }
func (p Failed) String() string    { return "failed " + string(p.Kind) }

// Metrics describes a finished text generation.
type Metrics struct {
	ElapsedSeconds float64
	ApproxTokens   int
}

// TextResult is replaced wholesale by each successful text attempt.
type TextResult struct {
	TemplateKey string
	Topic       string
	Prompt      string
	Text        string
	Model       string
	Metrics     Metrics
}

// Image is an opaque image payload: inline bytes, a URL, or both.
type Image struct {
	Topic    string
	Data     []byte
	MIMEType string
	URL      string
	Model    string
}

// State is a snapshot of the controller. Results are never mutated after
// they are published, so a snapshot may share them with the controller.
type State struct {
	Phase Phase
	Text  *TextResult
	Image *Image
}

// Loading reports whether an attempt is in flight.
func (s State) Loading() bool {
	_, ok := s.Phase.(Loading)
	return ok
}

// ErrorMessage returns the banner text, or "" when the phase is not Failed.
func (s State) ErrorMessage() string {
	if f, ok := s.Phase.(Failed); ok {
		return f.Message
	}
	return ""
}

// ErrBusy is returned when an attempt starts while another is loading.
var ErrBusy = errors.New("a generation is already in progress")

// ValidationError is a local input problem detected before any call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// EndpointError wraps a failure from the text or image endpoint.
type EndpointError struct {
	Kind Kind
	Err  error
}

func (e *EndpointError) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " endpoint failed"
	}
	return e.Err.Error()
}

func (e *EndpointError) Unwrap() error { return e.Err }

// panicError carries a value recovered from a provider call. It is logged
// but never shown to the user.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
