package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/contentgen/internal/export"
	"github.com/abhisek/contentgen/internal/generate"
	"github.com/abhisek/contentgen/internal/llm"
	"github.com/abhisek/contentgen/internal/templates"
)

func specialKey(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

func keyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

// run executes cmd and feeds every resulting message back into the screen.
// Commands returned by Update are not followed.
func run(t *testing.T, s *GeneratorScreen, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c != nil {
				s.Update(c())
			}
		}
		return
	}
	s.Update(msg)
}

func focusOn(t *testing.T, s *GeneratorScreen, f field) {
	t.Helper()
	for i := 0; s.focus != f; i++ {
		if i > int(numFields) {
			t.Fatalf("could not reach field %d", f)
		}
		s.Update(specialKey(tea.KeyTab))
	}
}

type recordingSink struct {
	names []string
	data  [][]byte
}

func (r *recordingSink) Save(_ context.Context, data []byte, filename, _ string) error {
	r.names = append(r.names, filename)
	r.data = append(r.data, data)
	return nil
}

func newScreen(p *llm.MockProvider) (*GeneratorScreen, *recordingSink) {
	sink := &recordingSink{}
	ctrl := generate.New(templates.Default(), p, p)
	return New(context.Background(), ctrl, sink), sink
}

// ctxProvider fails the way real SDKs do once the call context is done.
type ctxProvider struct{}

func (ctxProvider) Generate(ctx context.Context, _ llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &llm.Response{Text: "too late"}, nil
}

func (ctxProvider) GenerateImage(ctx context.Context, _ llm.ImageRequest) (*llm.ImageResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &llm.ImageResponse{Data: []byte{1}, MIMEType: "image/png"}, nil
}

func (ctxProvider) ModelID() string { return "ctx" }

func TestDefaults(t *testing.T) {
	s, _ := newScreen(llm.NewMockProvider())

	p := s.params()
	if p.TemplateKey != "story" {
		t.Errorf("expected template 'story', got %q", p.TemplateKey)
	}
	if p.Grade != templates.Grades[0] {
		t.Errorf("expected grade %q, got %q", templates.Grades[0], p.Grade)
	}
	if p.Count != generate.DefaultCount {
		t.Errorf("expected count %d, got %d", generate.DefaultCount, p.Count)
	}
	if s.focus != fieldTemplate {
		t.Errorf("expected initial focus on template, got %d", s.focus)
	}
}

func TestChangeTemplateAndGrade(t *testing.T) {
	s, _ := newScreen(llm.NewMockProvider())

	s.Update(specialKey(tea.KeyRight))
	if got := s.params().TemplateKey; got != "math" {
		t.Errorf("expected 'math' after right, got %q", got)
	}
	s.Update(specialKey(tea.KeyLeft))
	s.Update(specialKey(tea.KeyLeft))
	if got := s.params().TemplateKey; got != "writing" {
		t.Errorf("expected wrap to 'writing', got %q", got)
	}

	focusOn(t, s, fieldGrade)
	s.Update(specialKey(tea.KeyRight))
	s.Update(specialKey(tea.KeyRight))
	if got := s.params().Grade; got != "3rd" {
		t.Errorf("expected grade '3rd', got %q", got)
	}
}

func TestTypingTopicAndCount(t *testing.T) {
	s, _ := newScreen(llm.NewMockProvider())

	focusOn(t, s, fieldTopic)
	for _, r := range "Bees" {
		s.Update(keyPress(r))
	}
	focusOn(t, s, fieldCount)
	s.Update(specialKey(tea.KeyBackspace))
	s.Update(keyPress('x'))
	s.Update(keyPress('3'))

	p := s.params()
	if p.Topic != "Bees" {
		t.Errorf("expected topic 'Bees', got %q", p.Topic)
	}
	if p.Count != 3 {
		t.Errorf("expected count 3, got %d", p.Count)
	}
}

func TestGenerateContentFlow(t *testing.T) {
	p := llm.NewMockProvider(llm.MockResponse{Text: "one two three four"})
	s, sink := newScreen(p)
	s.topic.SetValue("Space")

	focusOn(t, s, fieldGenerate)
	_, cmd := s.Update(specialKey(tea.KeyEnter))
	if !s.loading() {
		t.Fatal("expected loading right after activation")
	}
	if !strings.Contains(s.View(100, 40), "Generating content") {
		t.Error("expected loading line in view")
	}
	run(t, s, cmd)

	if s.loading() {
		t.Fatal("expected loading to end")
	}
	view := s.View(100, 40)
	if !strings.Contains(view, "Token Count: 4") {
		t.Errorf("expected perf line in view, got:\n%s", view)
	}
	if !strings.Contains(view, "one two three four") {
		t.Errorf("expected generated text in view")
	}

	focusOn(t, s, fieldExport)
	_, cmd = s.Update(specialKey(tea.KeyEnter))
	run(t, s, cmd)
	if len(sink.names) != 1 || !strings.HasPrefix(sink.names[0], "content-story-") {
		t.Fatalf("expected one story export, got %v", sink.names)
	}
	if string(sink.data[0]) != "one two three four" {
		t.Errorf("unexpected export body %q", sink.data[0])
	}
	if !strings.Contains(s.notice, "saved as content-story-") {
		t.Errorf("unexpected notice %q", s.notice)
	}
}

func TestCallsUseScreenContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctrl := generate.New(templates.Default(), ctxProvider{}, ctxProvider{})
	s := New(ctx, ctrl, &recordingSink{})
	s.topic.SetValue("Space")

	focusOn(t, s, fieldGenerate)
	_, cmd := s.Update(specialKey(tea.KeyEnter))
	run(t, s, cmd)

	st := ctrl.State()
	if st.Text != nil {
		t.Fatalf("expected no text after cancellation, got %q", st.Text.Text)
	}
	failed, ok := st.Phase.(generate.Failed)
	if !ok {
		t.Fatalf("expected failed phase, got %T", st.Phase)
	}
	if !errors.Is(failed.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", failed.Err)
	}
}

func TestValidationShownWithoutCall(t *testing.T) {
	p := llm.NewMockProvider()
	s, _ := newScreen(p)

	run(t, s, s.startText())

	if p.CallCount() != 0 {
		t.Errorf("expected no endpoint call, got %d", p.CallCount())
	}
	if !strings.Contains(s.View(100, 40), generate.MsgMissingFields) {
		t.Error("expected validation message in view")
	}
}

func TestExportDisabledWithoutText(t *testing.T) {
	s, sink := newScreen(llm.NewMockProvider())

	focusOn(t, s, fieldExport)
	_, cmd := s.Update(specialKey(tea.KeyEnter))
	if cmd != nil {
		t.Error("expected no command when there is nothing to export")
	}
	if len(sink.names) != 0 {
		t.Error("expected no export")
	}
}

func TestImageFlowAndSave(t *testing.T) {
	p := llm.NewMockProvider()
	p.AddImageResponse(llm.MockImageResponse{Data: []byte("png"), MIMEType: "image/png"})
	s, sink := newScreen(p)
	s.topic.SetValue("Volcanoes")

	run(t, s, s.startImage())
	if !strings.Contains(s.View(100, 40), "Image about Volcanoes ready") {
		t.Error("expected image summary in view")
	}

	run(t, s, s.saveImage())
	if len(sink.names) != 1 || !strings.HasPrefix(sink.names[0], "image-volcanoes-") {
		t.Fatalf("expected saved image, got %v", sink.names)
	}
}

func TestEndpointErrorBanner(t *testing.T) {
	p := llm.NewMockProvider(llm.MockResponse{Err: errors.New("quota exceeded")})
	s, _ := newScreen(p)
	s.topic.SetValue("Space")

	run(t, s, s.startText())
	if !strings.Contains(s.View(100, 40), "quota exceeded") {
		t.Error("expected error banner")
	}
}

func TestSecondStartWhilePendingIsRefused(t *testing.T) {
	s, _ := newScreen(llm.NewMockProvider(llm.MockResponse{Text: "x"}))
	s.topic.SetValue("Space")

	first := s.startText()
	if first == nil {
		t.Fatal("expected a command")
	}
	if cmd := s.startImage(); cmd != nil {
		t.Error("expected image start to be refused while pending")
	}
	if s.notice != noticeBusy {
		t.Errorf("expected busy notice, got %q", s.notice)
	}
	run(t, s, first)
	if s.loading() {
		t.Error("expected loading to end")
	}
}

func TestWindow(t *testing.T) {
	text := "a\nb\nc\nd\ne"
	tests := []struct {
		offset, height int
		want           string
	}{
		{0, 2, "a\nb"},
		{2, 2, "c\nd"},
		{10, 2, "d\ne"},
		{-1, 3, "a\nb\nc"},
		{0, 10, text},
		{0, 0, ""},
	}
	for _, tt := range tests {
		if got := window(text, tt.offset, tt.height); got != tt.want {
			t.Errorf("window(offset=%d, height=%d) = %q, want %q", tt.offset, tt.height, got, tt.want)
		}
	}
}

var _ export.Sink = (*recordingSink)(nil)
