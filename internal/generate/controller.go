// Package generate implements the content generation controller: input
// validation, prompt construction, one endpoint call per attempt, and the
// phase/result state that a screen renders.
package generate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/contentgen/internal/export"
	"github.com/abhisek/contentgen/internal/llm"
	"github.com/abhisek/contentgen/internal/metrics"
	"github.com/abhisek/contentgen/internal/templates"
)

// Params are the form inputs of a text attempt.
type Params struct {
	TemplateKey string
	Topic       string
	Grade       string
	Count       int
	Elements    string
}

// Controller runs at most one attempt at a time. The mutex guards the
// state record only and is never held across an endpoint call.
type Controller struct {
	registry *templates.Registry
	text     llm.Provider
	image    llm.ImageProvider

	now         func() time.Time
	timeout     time.Duration
	maxTokens   int
	temperature float64
	system      string
	log         *zap.Logger

	mu    sync.Mutex
	state State
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithTimeout bounds each endpoint call. Non-positive keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMaxTokens caps the text response length. Non-positive keeps the default.
func WithMaxTokens(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Controller) { c.temperature = t }
}

// WithSystemPrompt replaces the system prompt sent with text requests.
// Empty keeps the default.
func WithSystemPrompt(s string) Option {
	return func(c *Controller) {
		if s != "" {
			c.system = s
		}
	}
}

// New creates a controller in the Idle phase.
func New(registry *templates.Registry, text llm.Provider, image llm.ImageProvider, opts ...Option) *Controller {
	c := &Controller{
		registry:    registry,
		text:        text,
		image:       image,
		now:         time.Now,
		timeout:     DefaultTimeout,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		system:      defaultSystemPrompt,
		log:         zap.NewNop(),
		state:       State{Phase: Idle{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Templates returns the registry the controller builds prompts from.
func (c *Controller) Templates() *templates.Registry {
	return c.registry
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GenerateText validates p, builds the prompt and calls the text endpoint
// once. Validation and endpoint failures end in the Failed phase and are
// not returned as errors; the only error is ErrBusy.
func (c *Controller) GenerateText(ctx context.Context, p Params) (st State, err error) {
	p = p.normalize()
	if msg := validateText(p); msg != "" {
		return c.reject(KindText, msg)
	}

	start, err := c.begin(KindText, func(s *State) { s.Text = nil })
	if err != nil {
		return c.State(), err
	}

	var result *TextResult
	var failure error
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("text generation panicked", zap.Any("panic", r), zap.String("template", p.TemplateKey))
			failure = &EndpointError{Kind: KindText, Err: &panicError{value: r}}
			result = nil
			err = nil
		}
		st = c.finishText(p, start, result, failure)
	}()

	def, err := c.registry.Get(p.TemplateKey)
	if err != nil {
		c.log.Error("unknown template requested", zap.String("template", p.TemplateKey), zap.Error(err))
		failure = fmt.Errorf("build prompt: %w", err)
		return st, nil
	}

	prompt := def.Build(p.values())

	callCtx, cancel := context.WithTimeout(llm.WithPurpose(ctx, llm.TextPurpose(def.Key)), c.timeout)
	defer cancel()

	resp, err := c.text.Generate(callCtx, llm.Request{
		System:      c.system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		failure = &EndpointError{Kind: KindText, Err: err}
		return st, nil
	}
	if resp == nil {
		failure = &EndpointError{Kind: KindText, Err: &llm.ErrInvalidResponse{Err: errors.New("empty text response")}}
		return st, nil
	}

	result = &TextResult{
		TemplateKey: def.Key,
		Topic:       p.Topic,
		Prompt:      prompt,
		Text:        resp.Text,
		Model:       resp.Model,
	}
	return st, nil
}

// GenerateImage calls the image endpoint once for topic. Like GenerateText
// the only returned error is ErrBusy.
func (c *Controller) GenerateImage(ctx context.Context, topic string) (st State, err error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return c.reject(KindImage, MsgMissingTopic)
	}

	start, err := c.begin(KindImage, func(s *State) { s.Image = nil })
	if err != nil {
		return c.State(), err
	}

	var img *Image
	var failure error
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("image generation panicked", zap.Any("panic", r), zap.String("topic", topic))
			failure = &EndpointError{Kind: KindImage, Err: &panicError{value: r}}
			img = nil
			err = nil
		}
		st = c.finishImage(start, img, failure)
	}()

	callCtx, cancel := context.WithTimeout(llm.WithPurpose(ctx, llm.PurposeImage), c.timeout)
	defer cancel()

	resp, err := c.image.GenerateImage(callCtx, llm.ImageRequest{
		Prompt:      ImagePrompt(topic),
		AspectRatio: imageAspectRatio,
	})
	if err != nil {
		failure = &EndpointError{Kind: KindImage, Err: err}
		return st, nil
	}
	if resp == nil || (len(resp.Data) == 0 && resp.URL == "") {
		failure = &EndpointError{Kind: KindImage, Err: &llm.ErrInvalidResponse{Err: errors.New("no image in response")}}
		return st, nil
	}

	img = &Image{
		Topic:    topic,
		Data:     resp.Data,
		MIMEType: resp.MIMEType,
		URL:      resp.URL,
		Model:    resp.Model,
	}
	return st, nil
}

// ImagePrompt is the fixed illustration prompt for topic.
func ImagePrompt(topic string) string {
	return fmt.Sprintf(imagePromptFormat, topic)
}

// Export hands the current text result to sink as a plain-text file and
// returns the filename. Without a text result it does nothing.
func (c *Controller) Export(ctx context.Context, sink export.Sink) (string, error) {
	text := c.State().Text
	if text == nil {
		return "", nil
	}
	name := export.Filename(text.TemplateKey, c.now())
	if err := sink.Save(ctx, []byte(text.Text), name, export.MIMEPlainText); err != nil {
		return "", fmt.Errorf("export %s: %w", name, err)
	}
	c.log.Info("content exported", zap.String("file", name), zap.String("template", text.TemplateKey))
	return name, nil
}

// SaveImage hands the current image bytes to sink. Without an inline image
// it does nothing.
func (c *Controller) SaveImage(ctx context.Context, sink export.Sink) (string, error) {
	img := c.State().Image
	if img == nil || len(img.Data) == 0 {
		return "", nil
	}
	name := export.ImageFilename(img.Topic, img.MIMEType, c.now())
	if err := sink.Save(ctx, img.Data, name, img.MIMEType); err != nil {
		return "", fmt.Errorf("save image %s: %w", name, err)
	}
	return name, nil
}

// Prompt validates p and returns the prompt GenerateText would send,
// without calling any endpoint.
func Prompt(registry *templates.Registry, p Params) (string, error) {
	p = p.normalize()
	if msg := validateText(p); msg != "" {
		return "", &ValidationError{Message: msg}
	}
	def, err := registry.Get(p.TemplateKey)
	if err != nil {
		return "", err
	}
	return def.Build(p.values()), nil
}

func (p Params) normalize() Params {
	p.TemplateKey = strings.TrimSpace(p.TemplateKey)
	p.Topic = strings.TrimSpace(p.Topic)
	p.Grade = strings.TrimSpace(p.Grade)
	if p.Count <= 0 {
		p.Count = DefaultCount
	}
	return p
}

func (p Params) values() templates.Values {
	return templates.Values{
		Topic:    p.Topic,
		Grade:    p.Grade,
		Count:    p.Count,
		Elements: p.Elements,
	}
}

func validateText(p Params) string {
	if p.TemplateKey == "" || p.Topic == "" || p.Grade == "" {
		return MsgMissingFields
	}
	if !templates.ValidGrade(p.Grade) {
		return MsgInvalidGrade
	}
	return ""
}

// reject records a validation failure without touching results.
func (c *Controller) reject(kind Kind, msg string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Loading() {
		metrics.ObserveGeneration(string(kind), metrics.OutcomeBusy, 0)
		return c.state, ErrBusy
	}
	c.state.Phase = Failed{Kind: kind, Err: &ValidationError{Message: msg}, Message: msg}
	metrics.ObserveGeneration(string(kind), metrics.OutcomeInvalid, 0)
	return c.state, nil
}

// begin enters Loading and clears the caller's own result.
func (c *Controller) begin(kind Kind, clear func(*State)) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Loading() {
		metrics.ObserveGeneration(string(kind), metrics.OutcomeBusy, 0)
		return time.Time{}, ErrBusy
	}
	start := c.now()
	clear(&c.state)
	c.state.Phase = Loading{Kind: kind, Since: start}
	return start, nil
}

func (c *Controller) finishText(p Params, start time.Time, result *TextResult, failure error) State {
	end := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if result == nil {
		if failure == nil {
			failure = &EndpointError{Kind: KindText}
		}
		msg := c.describe(failure, MsgTextFallback)
		c.state.Phase = Failed{Kind: KindText, Err: failure, Message: msg}
		metrics.ObserveGeneration(string(KindText), metrics.OutcomeFailed, end.Sub(start))
		c.log.Warn("text generation failed",
			zap.String("template", p.TemplateKey),
			zap.Error(failure),
		)
		return c.state
	}

	result.Metrics = Metrics{
		ElapsedSeconds: elapsedSeconds(start, end),
		ApproxTokens:   ApproxTokens(result.Text),
	}
	c.state.Text = result
	c.state.Phase = Succeeded{Kind: KindText}

	metrics.ObserveGeneration(string(KindText), metrics.OutcomeSucceeded, end.Sub(start))
	metrics.GeneratedWords.WithLabelValues(result.TemplateKey).Add(float64(result.Metrics.ApproxTokens))
	c.log.Info("text generated",
		zap.String("template", result.TemplateKey),
		zap.String("model", result.Model),
		zap.Float64("elapsed_s", result.Metrics.ElapsedSeconds),
		zap.Int("words", result.Metrics.ApproxTokens),
	)
	return c.state
}

func (c *Controller) finishImage(start time.Time, img *Image, failure error) State {
	end := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if img == nil {
		if failure == nil {
			failure = &EndpointError{Kind: KindImage}
		}
		c.state.Image = nil
		c.state.Phase = Failed{Kind: KindImage, Err: failure, Message: c.describe(failure, MsgImageFallback)}
		metrics.ObserveGeneration(string(KindImage), metrics.OutcomeFailed, end.Sub(start))
		c.log.Warn("image generation failed", zap.Error(failure))
		return c.state
	}

	c.state.Image = img
	c.state.Phase = Succeeded{Kind: KindImage}
	metrics.ObserveGeneration(string(KindImage), metrics.OutcomeSucceeded, end.Sub(start))
	c.log.Info("image generated", zap.String("topic", img.Topic), zap.String("model", img.Model), zap.Int("bytes", len(img.Data)))
	return c.state
}

// describe turns a failure into the banner text. Registry failures,
// recovered panics and empty descriptions fall back to the generic message.
func (c *Controller) describe(err error, fallback string) string {
	var nf *templates.NotFoundError
	if errors.As(err, &nf) {
		return fallback
	}
	var pe *panicError
	if errors.As(err, &pe) {
		return fallback
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("The request timed out after %s", c.timeout)
	}
	var ee *EndpointError
	if errors.As(err, &ee) && ee.Err == nil {
		return fallback
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}

// ApproxTokens counts whitespace-delimited fields.
func ApproxTokens(text string) int {
	return len(strings.Fields(text))
}

// elapsedSeconds rounds to two decimals and never goes below zero.
func elapsedSeconds(start, end time.Time) float64 {
	secs := end.Sub(start).Seconds()
	if secs < 0 {
		return 0
	}
	return math.Round(secs*100) / 100
}
