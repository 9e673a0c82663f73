package ui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// FilterBar is the one-line query editor opened with "/".
type FilterBar struct {
	input   textinput.Model
	visible bool
}

// NewFilterBar creates a hidden filter bar.
func NewFilterBar() *FilterBar {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "text  :a author  :m msg  :t tag  :! not  &&  ||"
	ti.CharLimit = 512
	return &FilterBar{input: ti}
}

// Show opens the bar with query as the initial text.
func (f *FilterBar) Show(query string) tea.Cmd {
	f.visible = true
	f.input.PromptStyle = FilterPromptStyle
	f.input.SetValue(query)
	f.input.CursorEnd()
	return f.input.Focus()
}

// Hide closes the bar.
func (f *FilterBar) Hide() {
	f.visible = false
	f.input.Blur()
}

func (f *FilterBar) IsVisible() bool { return f.visible }

// Value is the current text.
func (f *FilterBar) Value() string { return f.input.Value() }

// SetWidth sets the input width.
func (f *FilterBar) SetWidth(w int) {
	f.input.Width = max(w-4, 10)
}

// Update forwards editing keys to the input.
func (f *FilterBar) Update(msg tea.Msg) tea.Cmd {
	if !f.visible {
		return nil
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return cmd
}

// View renders the bar, or nothing when hidden.
func (f *FilterBar) View() string {
	if !f.visible {
		return ""
	}
	return f.input.View()
}
