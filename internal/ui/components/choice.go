package components

import (
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/contentgen/internal/ui/theme"
)

// Choice is a single-line selector cycled with left/right.
type Choice struct {
	Options  []string
	Selected int
	Focused  bool
}

// NewChoice creates a selector starting at the first option.
func NewChoice(options []string) Choice {
	return Choice{Options: options}
}

// Update handles keyboard navigation while focused.
func (c Choice) Update(msg tea.Msg) (Choice, tea.Cmd) {
	if !c.Focused || len(c.Options) == 0 {
		return c, nil
	}

	kmsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil
	}

	switch kmsg.String() {
	case "left", "h":
		c.Selected = (c.Selected - 1 + len(c.Options)) % len(c.Options)
	case "right", "l", "space":
		c.Selected = (c.Selected + 1) % len(c.Options)
	}

	return c, nil
}

// Value returns the selected option, or "" when there are none.
func (c Choice) Value() string {
	if c.Selected < 0 || c.Selected >= len(c.Options) {
		return ""
	}
	return c.Options[c.Selected]
}

// View renders the selected option between arrows.
func (c Choice) View() string {
	style := lipgloss.NewStyle().Foreground(theme.Text)
	arrows := lipgloss.NewStyle().Foreground(theme.TextDim)
	if c.Focused {
		style = style.Foreground(theme.Primary).Bold(true)
		arrows = arrows.Foreground(theme.Primary)
	}
	return arrows.Render("◂ ") + style.Render(c.Value()) + arrows.Render(" ▸")
}
