package components

import (
	"github.com/abhisek/contentgen/internal/ui/theme"
)

// Button is a styled button label. Active means focused.
type Button struct {
	Label    string
	Active   bool
	Disabled bool
}

// View renders the button.
func (b Button) View() string {
	switch {
	case b.Disabled:
		return theme.ButtonDisabled.Render("  " + b.Label + " ")
	case b.Active:
		return theme.ButtonActive.Render("▸ " + b.Label + " ")
	}
	return theme.ButtonInactive.Render("  " + b.Label + " ")
}
