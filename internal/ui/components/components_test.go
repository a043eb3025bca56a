package components

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
)

func key(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func TestChoiceCycles(t *testing.T) {
	c := NewChoice([]string{"1st", "2nd", "3rd"})
	if c.Value() != "1st" {
		t.Fatalf("expected first option, got %q", c.Value())
	}

	c, _ = c.Update(tea.KeyPressMsg{Code: tea.KeyRight})
	if c.Value() != "1st" {
		t.Error("unfocused choice should ignore keys")
	}

	c.Focused = true
	c, _ = c.Update(tea.KeyPressMsg{Code: tea.KeyLeft})
	if c.Value() != "3rd" {
		t.Errorf("expected wrap to last option, got %q", c.Value())
	}
	c, _ = c.Update(tea.KeyPressMsg{Code: tea.KeyRight})
	c, _ = c.Update(tea.KeyPressMsg{Code: tea.KeyRight})
	if c.Value() != "2nd" {
		t.Errorf("expected 2nd, got %q", c.Value())
	}
	if !strings.Contains(c.View(), "2nd") {
		t.Error("view should show the selected option")
	}
}

func TestChoiceEmpty(t *testing.T) {
	c := NewChoice(nil)
	c.Focused = true
	c, _ = c.Update(tea.KeyPressMsg{Code: tea.KeyRight})
	if c.Value() != "" {
		t.Errorf("expected empty value, got %q", c.Value())
	}
}

func TestTextInputNumericOnly(t *testing.T) {
	ti := NewTextInput("5", true, 2)
	ti.Focus()
	for _, r := range "1a2" {
		ti, _ = ti.Update(key(r))
	}
	if ti.Value() != "12" {
		t.Errorf("expected digits only, got %q", ti.Value())
	}
	n, err := ti.NumericValue()
	if err != nil || n != 12 {
		t.Errorf("NumericValue = %d, %v", n, err)
	}

	ti.SetValue("")
	if _, err := ti.NumericValue(); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestTextInputFreeText(t *testing.T) {
	ti := NewTextInput("", false, 0)
	ti.Focus()
	for _, r := range "Sun" {
		ti, _ = ti.Update(key(r))
	}
	if ti.Value() != "Sun" {
		t.Errorf("expected Sun, got %q", ti.Value())
	}
}

func TestMenuSkipsDisabled(t *testing.T) {
	var pressed string
	m := NewMenu([]MenuItem{
		{Label: "A", Disabled: true},
		{Label: "B", Action: func() tea.Cmd { pressed = "B"; return nil }},
		{Label: "C", Disabled: true},
		{Label: "D", Action: func() tea.Cmd { pressed = "D"; return nil }},
	})
	if m.Selected != 1 {
		t.Fatalf("expected first enabled item, got %d", m.Selected)
	}

	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	if m.Selected != 3 {
		t.Errorf("expected to skip disabled item, got %d", m.Selected)
	}
	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if pressed != "D" {
		t.Errorf("expected D action, got %q", pressed)
	}
	if !strings.Contains(m.View(), "▸ D") {
		t.Error("selected item should be marked")
	}
}

func TestButtonView(t *testing.T) {
	if !strings.Contains(Button{Label: "Go", Active: true}.View(), "▸ Go") {
		t.Error("active button should carry the marker")
	}
	if strings.Contains(Button{Label: "Go", Active: true, Disabled: true}.View(), "▸") {
		t.Error("disabled button should not carry the marker")
	}
}
