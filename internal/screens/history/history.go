package history

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/contentgen/internal/router"
	"github.com/abhisek/contentgen/internal/screen"
	"github.com/abhisek/contentgen/internal/store"
	"github.com/abhisek/contentgen/internal/ui/layout"
	"github.com/abhisek/contentgen/internal/ui/theme"
)

const pageSize = 50

type historyLoadedMsg struct {
	Events []store.LLMEventRecord
	Err    error
}

// HistoryScreen lists recent generation requests.
type HistoryScreen struct {
	ctx       context.Context
	eventRepo store.EventRepo
	events    []store.LLMEventRecord
	selected  int
	expanded  map[int]bool
	loaded    bool
	errMsg    string
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a new HistoryScreen.
func New(ctx context.Context, eventRepo store.EventRepo) *HistoryScreen {
	if eventRepo == nil {
		eventRepo = store.NopEventRepo{}
	}
	return &HistoryScreen{
		ctx:       ctx,
		eventRepo: eventRepo,
		expanded:  make(map[int]bool),
	}
}

func (s *HistoryScreen) Init() tea.Cmd {
	ctx, repo := s.ctx, s.eventRepo
	return func() tea.Msg {
		events, err := repo.QueryLLMEvents(ctx, store.QueryOpts{Limit: pageSize})
		return historyLoadedMsg{Events: events, Err: err}
	}
}

func (s *HistoryScreen) Title() string {
	return "History"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Details"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.events = msg.Events
		}
		s.loaded = true
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
			return s, nil
		case "down", "j":
			if s.selected < len(s.events)-1 {
				s.selected++
			}
			return s, nil
		case "enter":
			s.expanded[s.selected] = !s.expanded[s.selected]
			return s, nil
		}
	}
	return s, nil
}

func (s *HistoryScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading history...")
	}
	if len(s.events) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  Nothing generated yet.")
	}

	var b strings.Builder
	b.WriteString("\n")

	for i, ev := range s.events {
		prefix := "  "
		if i == s.selected {
			prefix = "> "
		}

		line := fmt.Sprintf("%s%s  %-16s %-24s %6dms  %s",
			prefix, ev.Timestamp.Local().Format("Jan 02 15:04"), ev.Purpose, ev.Model, ev.LatencyMs, outcome(ev))

		style := lipgloss.NewStyle().Foreground(theme.Text)
		if !ev.Success {
			style = style.Foreground(theme.Error)
		}
		if i == s.selected {
			style = style.Bold(true).Foreground(theme.Primary)
		}
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(line)))
		b.WriteString("\n")

		if s.expanded[i] {
			b.WriteString(renderDetail(ev, width))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func outcome(ev store.LLMEventRecord) string {
	if !ev.Success {
		return "failed"
	}
	if ev.Kind == store.KindImage {
		return "image"
	}
	return fmt.Sprintf("%d tokens", ev.InputTokens+ev.OutputTokens)
}

func renderDetail(ev store.LLMEventRecord, width int) string {
	w := width - 8
	if w < 20 {
		w = 20
	}
	dim := lipgloss.NewStyle().Foreground(theme.TextDim).Width(w)

	var lines []string
	lines = append(lines, dim.Render("Prompt: "+truncate(ev.RequestBody, 400)))
	if ev.Success {
		lines = append(lines, dim.Render("Response: "+truncate(ev.ResponseBody, 400)))
	} else {
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.Error).Width(w).Render("Error: "+ev.ErrorMessage))
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
