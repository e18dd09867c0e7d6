// Package themes holds the lipgloss styles of the terminal overlay.
package themes

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style for the TUI.
type Theme struct {
	Title         lipgloss.Style
	Subtitle      lipgloss.Style
	Normal        lipgloss.Style
	Bold          lipgloss.Style
	Italic        lipgloss.Style
	Price         lipgloss.Style
	Warning       lipgloss.Style
	Feedback      lipgloss.Style
	Help          lipgloss.Style
	ButtonActive  lipgloss.Style
	ButtonPrimary lipgloss.Style
	ButtonLocked  lipgloss.Style
	RoundedBox    lipgloss.Style
	Primary       lipgloss.Color
	Muted         lipgloss.Color
	Border        lipgloss.Color
	Success       lipgloss.Color
	WarningColor  lipgloss.Color
}

// Default is the default theme.
var Default = newTheme(
	lipgloss.Color("#10b981"),
	lipgloss.Color("#737373"),
	lipgloss.Color("#404040"),
	lipgloss.Color("#f59e0b"),
	lipgloss.Color("#fafafa"),
)

// CatppuccinMocha is the Catppuccin Mocha theme.
var CatppuccinMocha = newTheme(
	lipgloss.Color("#a6e3a1"),
	lipgloss.Color("#6c7086"),
	lipgloss.Color("#45475a"),
	lipgloss.Color("#f9e2af"),
	lipgloss.Color("#cdd6f4"),
)

func newTheme(primary, muted, border, warning, fg lipgloss.Color) Theme {
	return Theme{
		Primary:      primary,
		Muted:        muted,
		Border:       border,
		Success:      primary,
		WarningColor: warning,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(fg).
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Foreground(muted),
		Normal: lipgloss.NewStyle().
			Foreground(fg),
		Bold: lipgloss.NewStyle().
			Bold(true).
			Foreground(fg),
		Italic: lipgloss.NewStyle().
			Italic(true).
			Foreground(fg),
		Price: lipgloss.NewStyle().
			Bold(true).
			Foreground(primary),
		Warning: lipgloss.NewStyle().
			Foreground(warning).
			Bold(true),
		Feedback: lipgloss.NewStyle().
			Foreground(primary).
			Bold(true),
		Help: lipgloss.NewStyle().
			Foreground(muted).
			MarginTop(1),
		ButtonPrimary: lipgloss.NewStyle().
			Background(primary).
			Foreground(lipgloss.Color("#0f172a")).
			Bold(true).
			Padding(0, 2).
			MarginRight(2),
		ButtonActive: lipgloss.NewStyle().
			Background(border).
			Foreground(fg).
			Padding(0, 2),
		ButtonLocked: lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 2),
		RoundedBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(1, 2).
			Width(60),
	}
}
