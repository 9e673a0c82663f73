package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the active color scheme.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

var currentTheme = ThemeDark

type palette struct {
	Bg, Surface, Border, Text, TextDim  lipgloss.Color
	Accent, Purple, Cyan, Green, Yellow lipgloss.Color
	Orange, Red                         lipgloss.Color
}

// Tokyo Night
var darkColors = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Purple:  lipgloss.Color("#bb9af7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Orange:  lipgloss.Color("#ff9e64"),
	Red:     lipgloss.Color("#f7768e"),
}

// Tokyo Night Light
var lightColors = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Purple:  lipgloss.Color("#7847bd"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Orange:  lipgloss.Color("#965027"),
	Red:     lipgloss.Color("#8c4351"),
}

// Active colors, set by InitTheme.
var (
	ColorBg      lipgloss.Color
	ColorSurface lipgloss.Color
	ColorBorder  lipgloss.Color
	ColorText    lipgloss.Color
	ColorTextDim lipgloss.Color
	ColorAccent  lipgloss.Color
	ColorPurple  lipgloss.Color
	ColorCyan    lipgloss.Color
	ColorGreen   lipgloss.Color
	ColorYellow  lipgloss.Color
	ColorOrange  lipgloss.Color
	ColorRed     lipgloss.Color
)

// themeMu guards the color and style variables during live theme switches.
var themeMu sync.RWMutex

// InitTheme activates the "light" palette or, for any other name, the dark
// one, and rebuilds every style.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()

	p := darkColors
	currentTheme = ThemeDark
	if theme == string(ThemeLight) {
		p = lightColors
		currentTheme = ThemeLight
	}

	ColorBg = p.Bg
	ColorSurface = p.Surface
	ColorBorder = p.Border
	ColorText = p.Text
	ColorTextDim = p.TextDim
	ColorAccent = p.Accent
	ColorPurple = p.Purple
	ColorCyan = p.Cyan
	ColorGreen = p.Green
	ColorYellow = p.Yellow
	ColorOrange = p.Orange
	ColorRed = p.Red

	initStyles()
}

// GetCurrentTheme returns the active theme.
func GetCurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

func init() {
	InitTheme(string(ThemeDark))
}

// Base styles
var (
	TitleStyle     lipgloss.Style
	HighlightStyle lipgloss.Style
	DimStyle       lipgloss.Style
	ErrorStyle     lipgloss.Style
	SuccessStyle   lipgloss.Style
	WarningStyle   lipgloss.Style
	InfoStyle      lipgloss.Style
)

// Commit row styles. The selected variants share the highlight background so
// a row reads as one bar.
var (
	TimeStyle   lipgloss.Style
	HashStyle   lipgloss.Style
	AuthorStyle lipgloss.Style
	MsgStyle    lipgloss.Style
	TagStyle    lipgloss.Style

	SelTimeStyle   lipgloss.Style
	SelHashStyle   lipgloss.Style
	SelAuthorStyle lipgloss.Style
	SelMsgStyle    lipgloss.Style
	SelTagStyle    lipgloss.Style
)

// Bars and overlays
var (
	HeaderStyle       lipgloss.Style
	StatusBarStyle    lipgloss.Style
	FilterPromptStyle lipgloss.Style
	OverlayStyle      lipgloss.Style
	ResultStyle       lipgloss.Style
	ResultSelStyle    lipgloss.Style
	MenuKeyStyle      lipgloss.Style
	MenuDescStyle     lipgloss.Style
)

func initStyles() {
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent)

	HighlightStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorAccent).
		Bold(true)

	DimStyle = lipgloss.NewStyle().Foreground(ColorTextDim)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(ColorRed).
		Bold(true)

	SuccessStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	InfoStyle = lipgloss.NewStyle().Foreground(ColorCyan)

	TimeStyle = lipgloss.NewStyle().Foreground(ColorTextDim)
	HashStyle = lipgloss.NewStyle().Foreground(ColorPurple)
	AuthorStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	MsgStyle = lipgloss.NewStyle().Foreground(ColorText)
	TagStyle = lipgloss.NewStyle().Foreground(ColorOrange).Bold(true)

	sel := lipgloss.NewStyle().Background(ColorSurface)
	SelTimeStyle = sel.Foreground(ColorText)
	SelHashStyle = sel.Foreground(ColorPurple).Bold(true)
	SelAuthorStyle = sel.Foreground(ColorGreen).Bold(true)
	SelMsgStyle = sel.Foreground(ColorText).Bold(true)
	SelTagStyle = sel.Foreground(ColorOrange).Bold(true)

	HeaderStyle = lipgloss.NewStyle().
		Foreground(ColorText).
		Background(ColorSurface).
		Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
		Foreground(ColorTextDim).
		Padding(0, 1)

	FilterPromptStyle = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true)

	OverlayStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(0, 1)

	ResultStyle = lipgloss.NewStyle().
		Foreground(ColorText).
		Padding(0, 1)

	ResultSelStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorAccent).
		Padding(0, 1)

	MenuKeyStyle = lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(ColorAccent).
		Bold(true).
		Padding(0, 1)

	MenuDescStyle = lipgloss.NewStyle().Foreground(ColorText)
}

// MenuKey renders one help bar entry.
func MenuKey(key, description string) string {
	return MenuKeyStyle.Render(key) + " " + MenuDescStyle.Render(description)
}
