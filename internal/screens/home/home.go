package home

import (
	"context"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/contentgen/internal/export"
	"github.com/abhisek/contentgen/internal/generate"
	"github.com/abhisek/contentgen/internal/router"
	"github.com/abhisek/contentgen/internal/screen"
	"github.com/abhisek/contentgen/internal/screens/generator"
	"github.com/abhisek/contentgen/internal/screens/history"
	"github.com/abhisek/contentgen/internal/store"
	"github.com/abhisek/contentgen/internal/ui/components"
	"github.com/abhisek/contentgen/internal/ui/layout"
)

// HomeScreen is the main menu.
type HomeScreen struct {
	menu       components.Menu
	menuLabels []string
	warning    string
}

var _ screen.Screen = (*HomeScreen)(nil)

// New creates a new HomeScreen. warning, when set, is shown above the menu.
// Screens opened from the menu inherit ctx.
func New(ctx context.Context, ctrl *generate.Controller, sink export.Sink, eventRepo store.EventRepo, warning string) *HomeScreen {
	menuLabels := []string{"CREATE CONTENT", "HISTORY", "QUIT"}

	items := []components.MenuItem{
		{Label: menuLabels[0], Action: func() tea.Cmd {
			return func() tea.Msg {
				return router.PushScreenMsg{Screen: generator.New(ctx, ctrl, sink)}
			}
		}},
		{Label: menuLabels[1], Action: func() tea.Cmd {
			return func() tea.Msg {
				return router.PushScreenMsg{Screen: history.New(ctx, eventRepo)}
			}
		}},
		{Label: menuLabels[2], Action: func() tea.Cmd {
			return tea.Quit
		}},
	}

	return &HomeScreen{
		menu:       components.NewMenu(items),
		menuLabels: menuLabels,
		warning:    warning,
	}
}

func (h *HomeScreen) Init() tea.Cmd {
	return nil
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

func (h *HomeScreen) View(width, height int) string {
	compact := layout.IsCompactHeight(height) || layout.IsCompactWidth(width)
	cw := contentWidth(width)

	sections := []string{renderTitle(cw, compact)}
	if h.warning != "" {
		sections = append(sections, renderKeyBanner(h.warning, cw))
	}
	sections = append(sections, renderMenu(h.menuLabels, h.menu.Selected, cw))

	return renderCabinetFrame(strings.Join(sections, "\n\n"), width, height)
}

func (h *HomeScreen) Title() string {
	return "Home"
}
