package generator

import (
	"context"
	"errors"
	"strconv"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/contentgen/internal/export"
	"github.com/abhisek/contentgen/internal/generate"
	"github.com/abhisek/contentgen/internal/screen"
	"github.com/abhisek/contentgen/internal/templates"
	"github.com/abhisek/contentgen/internal/ui/components"
	"github.com/abhisek/contentgen/internal/ui/layout"
	"github.com/abhisek/contentgen/internal/ui/theme"
)

type field int

const (
	fieldTemplate field = iota
	fieldTopic
	fieldGrade
	fieldCount
	fieldGenerate
	fieldImage
	fieldExport
	fieldSaveImage
	numFields
)

const noticeBusy = "A generation is already in progress"

// GeneratorScreen is the content form with its results area.
type GeneratorScreen struct {
	ctx  context.Context
	ctrl *generate.Controller
	sink export.Sink

	summaries []templates.Summary
	template  components.Choice
	topic     components.TextInput
	grade     components.Choice
	count     components.TextInput

	focus   field
	pending bool
	spinner spinner.Model
	notice  string
	scroll  int
}

var _ screen.Screen = (*GeneratorScreen)(nil)
var _ screen.KeyHintProvider = (*GeneratorScreen)(nil)

// New creates a generator screen driving ctrl. Exports and saved images go
// to sink. Calls started from the screen are bound to ctx.
func New(ctx context.Context, ctrl *generate.Controller, sink export.Sink) *GeneratorScreen {
	summaries := ctrl.Templates().List()
	names := make([]string, len(summaries))
	for i, s := range summaries {
		names[i] = s.Name
	}

	count := components.NewTextInput("5", true, 2)
	count.SetValue(strconv.Itoa(generate.DefaultCount))

	s := &GeneratorScreen{
		ctx:       ctx,
		ctrl:      ctrl,
		sink:      sink,
		summaries: summaries,
		template:  components.NewChoice(names),
		topic:     components.NewTextInput("e.g. The Solar System", false, 80),
		grade:     components.NewChoice(templates.Grades),
		count:     count,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(theme.Accent))),
	}
	s.template.Focused = true
	return s
}

func (s *GeneratorScreen) Init() tea.Cmd {
	return nil
}

func (s *GeneratorScreen) Title() string {
	return "Create Content"
}

func (s *GeneratorScreen) KeyHints() []layout.KeyHint {
	hints := []layout.KeyHint{
		{Key: "Tab", Description: "Next"},
		{Key: "Enter", Description: "Activate"},
	}
	if s.focus == fieldTemplate || s.focus == fieldGrade {
		hints = append(hints, layout.KeyHint{Key: "←→", Description: "Change"})
	}
	return append(hints,
		layout.KeyHint{Key: "PgUp/PgDn", Description: "Scroll"},
		layout.KeyHint{Key: "Esc", Description: "Back"},
	)
}

func (s *GeneratorScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case textDoneMsg:
		return s.finish(msg.Err)
	case imageDoneMsg:
		return s.finish(msg.Err)

	case savedMsg:
		switch {
		case msg.Err != nil:
			s.notice = msg.Err.Error()
		case msg.Name == "":
			s.notice = "Nothing to save yet"
		default:
			s.notice = msg.What + " saved as " + msg.Name
		}
		return s, nil

	case spinner.TickMsg:
		if !s.loading() {
			return s, nil
		}
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd

	case tea.KeyMsg:
		return s.handleKey(msg)
	}
	return s, nil
}

func (s *GeneratorScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		return s, s.setFocus((s.focus + 1) % numFields)
	case "shift+tab", "up":
		return s, s.setFocus((s.focus + numFields - 1) % numFields)
	case "pgdown":
		s.scroll += 5
		return s, nil
	case "pgup":
		s.scroll -= 5
		if s.scroll < 0 {
			s.scroll = 0
		}
		return s, nil
	case "enter":
		return s, s.activate()
	}

	var cmd tea.Cmd
	switch s.focus {
	case fieldTemplate:
		s.template, cmd = s.template.Update(msg)
	case fieldTopic:
		s.topic, cmd = s.topic.Update(msg)
	case fieldGrade:
		s.grade, cmd = s.grade.Update(msg)
	case fieldCount:
		s.count, cmd = s.count.Update(msg)
	}
	return s, cmd
}

func (s *GeneratorScreen) setFocus(f field) tea.Cmd {
	s.focus = f
	s.template.Focused = f == fieldTemplate
	s.grade.Focused = f == fieldGrade
	s.topic.Blur()
	s.count.Blur()
	switch f {
	case fieldTopic:
		return s.topic.Focus()
	case fieldCount:
		return s.count.Focus()
	}
	return nil
}

func (s *GeneratorScreen) activate() tea.Cmd {
	switch s.focus {
	case fieldGenerate:
		return s.startText()
	case fieldImage:
		return s.startImage()
	case fieldExport:
		return s.exportText()
	case fieldSaveImage:
		return s.saveImage()
	default:
		return s.setFocus(s.focus + 1)
	}
}

func (s *GeneratorScreen) params() generate.Params {
	p := generate.Params{
		Topic: s.topic.Value(),
		Grade: s.grade.Value(),
	}
	if i := s.template.Selected; i >= 0 && i < len(s.summaries) {
		p.TemplateKey = s.summaries[i].Key
	}
	if n, err := s.count.NumericValue(); err == nil {
		p.Count = n
	}
	return p
}

func (s *GeneratorScreen) loading() bool {
	return s.pending || s.ctrl.State().Loading()
}

func (s *GeneratorScreen) startText() tea.Cmd {
	if s.loading() {
		s.notice = noticeBusy
		return nil
	}
	s.pending = true
	s.notice = ""
	s.scroll = 0
	ctx, ctrl, p := s.ctx, s.ctrl, s.params()
	return tea.Batch(func() tea.Msg {
		_, err := ctrl.GenerateText(ctx, p)
		return textDoneMsg{Err: err}
	}, s.spinner.Tick)
}

func (s *GeneratorScreen) startImage() tea.Cmd {
	if s.loading() {
		s.notice = noticeBusy
		return nil
	}
	s.pending = true
	s.notice = ""
	ctx, ctrl, topic := s.ctx, s.ctrl, s.topic.Value()
	return tea.Batch(func() tea.Msg {
		_, err := ctrl.GenerateImage(ctx, topic)
		return imageDoneMsg{Err: err}
	}, s.spinner.Tick)
}

func (s *GeneratorScreen) finish(err error) (screen.Screen, tea.Cmd) {
	s.pending = false
	if errors.Is(err, generate.ErrBusy) {
		s.notice = noticeBusy
	}
	return s, nil
}

func (s *GeneratorScreen) exportText() tea.Cmd {
	if s.ctrl.State().Text == nil {
		return nil
	}
	ctx, ctrl, sink := s.ctx, s.ctrl, s.sink
	return func() tea.Msg {
		name, err := ctrl.Export(ctx, sink)
		return savedMsg{What: "Content", Name: name, Err: err}
	}
}

func (s *GeneratorScreen) saveImage() tea.Cmd {
	if img := s.ctrl.State().Image; img == nil || len(img.Data) == 0 {
		return nil
	}
	ctx, ctrl, sink := s.ctx, s.ctrl, s.sink
	return func() tea.Msg {
		name, err := ctrl.SaveImage(ctx, sink)
		return savedMsg{What: "Image", Name: name, Err: err}
	}
}
