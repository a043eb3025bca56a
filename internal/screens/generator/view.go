package generator

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/contentgen/internal/generate"
	"github.com/abhisek/contentgen/internal/ui/components"
	"github.com/abhisek/contentgen/internal/ui/layout"
	"github.com/abhisek/contentgen/internal/ui/theme"
)

func (s *GeneratorScreen) View(width, height int) string {
	st := s.ctrl.State()
	inner := width - 4
	if inner < 20 {
		inner = 20
	}

	var top []string
	top = append(top, s.renderForm())
	top = append(top, s.renderActions(st, inner))
	top = append(top, s.renderStatus(st))
	header := lipgloss.NewStyle().Padding(1, 2, 0, 2).Render(strings.Join(top, "\n\n"))

	remaining := height - lipgloss.Height(header) - 1
	results := s.renderResults(st, inner, remaining)

	return header + "\n" + lipgloss.NewStyle().Padding(0, 2).Render(results)
}

func (s *GeneratorScreen) renderForm() string {
	row := func(label, value string, f field) string {
		l := theme.Label.Render(label)
		if s.focus == f {
			l = theme.Label.Foreground(theme.Primary).Bold(true).Render(label)
		}
		return l + value
	}
	return strings.Join([]string{
		row("Template", s.template.View(), fieldTemplate),
		row("Topic", s.topic.View(), fieldTopic),
		row("Grade", s.grade.View(), fieldGrade),
		row("Count", s.count.View(), fieldCount),
	}, "\n")
}

func (s *GeneratorScreen) renderActions(st generate.State, width int) string {
	busy := s.loading()
	buttons := []components.Button{
		{Label: "Generate Content", Active: s.focus == fieldGenerate, Disabled: busy},
		{Label: "Generate Image", Active: s.focus == fieldImage, Disabled: busy},
		{Label: "Export Content", Active: s.focus == fieldExport, Disabled: st.Text == nil},
		{Label: "Save Image", Active: s.focus == fieldSaveImage, Disabled: st.Image == nil || len(st.Image.Data) == 0},
	}
	views := make([]string, len(buttons))
	for i, b := range buttons {
		views[i] = b.View()
	}
	if layout.IsCompactWidth(width) {
		return lipgloss.JoinVertical(lipgloss.Left, views...)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

func (s *GeneratorScreen) renderStatus(st generate.State) string {
	var lines []string
	if s.loading() {
		what := "content"
		if l, ok := st.Phase.(generate.Loading); ok && l.Kind == generate.KindImage {
			what = "image"
		}
		lines = append(lines, s.spinner.View()+" "+theme.Notice.Render("Generating "+what+"..."))
	}
	if s.notice != "" {
		lines = append(lines, theme.Notice.Render(s.notice))
	}
	if msg := st.ErrorMessage(); msg != "" {
		lines = append(lines, theme.ErrorBanner.Render("✗ "+msg))
	}
	if st.Text != nil {
		lines = append(lines, theme.Perf.Render(perfLine(st.Text.Metrics)))
	}
	return strings.Join(lines, "\n")
}

func (s *GeneratorScreen) renderResults(st generate.State, width, height int) string {
	var b strings.Builder
	if img := st.Image; img != nil {
		b.WriteString(theme.Hint.Render(imageSummary(img)))
		b.WriteString("\n\n")
	}
	if st.Text != nil {
		b.WriteString(lipgloss.NewStyle().Width(width).Foreground(theme.Text).Render(st.Text.Text))
	}
	return window(b.String(), s.scroll, height)
}

func perfLine(m generate.Metrics) string {
	return fmt.Sprintf("Generation Time: %.2fs | Token Count: %d", m.ElapsedSeconds, m.ApproxTokens)
}

func imageSummary(img *generate.Image) string {
	if len(img.Data) > 0 {
		return fmt.Sprintf("Image about %s ready: %d bytes %s. Use Save Image to write it to disk.", img.Topic, len(img.Data), img.MIMEType)
	}
	return fmt.Sprintf("Image about %s: %s", img.Topic, img.URL)
}

// window returns at most height lines of text starting at offset, clamping
// offset so the last page stays visible.
func window(text string, offset, height int) string {
	if height <= 0 || text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if last := len(lines) - height; offset > last {
		offset = last
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + height
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[offset:end], "\n")
}
