package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type helpSection struct {
	title string
	items [][2]string // key, description
}

var helpSections = []helpSection{
	{
		title: "NAVIGATION",
		items: [][2]string{
			{"j / Down", "Next commit"},
			{"k / Up", "Previous commit"},
			{"PgDn / Space", "Page down"},
			{"PgUp", "Page up"},
			{"g / G", "Newest / oldest"},
		},
	},
	{
		title: "FILTER",
		items: [][2]string{
			{"/", "Edit filter"},
			{"Enter", "Apply filter"},
			{"Ctrl+R", "Recall a recent filter"},
			{"Esc", "Clear filter"},
		},
	},
	{
		title: "QUERY SYNTAX",
		items: [][2]string{
			{"fix", "sha, author or message"},
			{":a alice", "Author"},
			{":m wip", "Message"},
			{":s 3f2a", "Commit sha"},
			{":t v1", "Tag names"},
			{":m! wip", "Negate"},
			{":mc Fix", "Case-sensitive"},
			{"a && b || c", "(a and b) or c"},
		},
	},
	{
		title: "OTHER",
		items: [][2]string{
			{"?", "This help"},
			{"q", "Quit"},
		},
	},
}

// HelpOverlay lists the key bindings and the query syntax.
type HelpOverlay struct {
	visible      bool
	width        int
	height       int
	scrollOffset int
}

func NewHelpOverlay() *HelpOverlay {
	return &HelpOverlay{}
}

func (h *HelpOverlay) Show() {
	h.visible = true
	h.scrollOffset = 0
}

func (h *HelpOverlay) Hide() {
	h.visible = false
}

func (h *HelpOverlay) IsVisible() bool {
	return h.visible
}

// SetSize sets the area the overlay renders into.
func (h *HelpOverlay) SetSize(width, height int) {
	h.width = width
	h.height = height
}

// Update scrolls with j/k; any other key closes the overlay.
func (h *HelpOverlay) Update(msg tea.Msg) {
	if !h.visible {
		return
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return
	}
	switch key.String() {
	case "j", "down":
		h.scrollOffset++
	case "k", "up":
		h.scrollOffset = max(h.scrollOffset-1, 0)
	case "pgdown", " ":
		h.scrollOffset += 10
	case "pgup":
		h.scrollOffset = max(h.scrollOffset-10, 0)
	default:
		h.Hide()
	}
}

func (h *HelpOverlay) lines() []string {
	sectionStyle := lipgloss.NewStyle().Foreground(ColorCyan).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(ColorPurple).Width(16)
	descStyle := lipgloss.NewStyle().Foreground(ColorText)

	lines := []string{TitleStyle.Render("KEYBOARD SHORTCUTS"), ""}
	for i, section := range helpSections {
		lines = append(lines, sectionStyle.Render(section.title))
		for _, item := range section.items {
			lines = append(lines, "  "+keyStyle.Render(item[0])+descStyle.Render(item[1]))
		}
		if i < len(helpSections)-1 {
			lines = append(lines, "")
		}
	}
	return lines
}

// View renders the visible part of the overlay.
func (h *HelpOverlay) View() string {
	if !h.visible {
		return ""
	}
	lines := h.lines()

	// Border plus footer.
	avail := max(h.height-4, 3)
	h.scrollOffset = min(h.scrollOffset, max(len(lines)-avail, 0))
	end := min(h.scrollOffset+avail, len(lines))
	visible := lines[h.scrollOffset:end]

	footer := "any key to close"
	if len(lines) > avail {
		footer = "j/k scroll • any other key to close"
	}
	content := strings.Join(visible, "\n") + "\n" + DimStyle.Italic(true).Render(footer)

	width := min(max(h.width-2, 30), 60)
	return OverlayStyle.Width(width).Render(content)
}
