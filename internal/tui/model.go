// Package tui renders the cooldown as a terminal overlay with bubbletea.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spendguard/internal/cooldown"
	"github.com/Veraticus/spendguard/internal/tui/themes"
)

const maxBarWidth = 52

// Model holds the overlay state.
type Model struct {
	theme    themes.Theme
	actions  cooldown.Actions
	keymap   KeyMap
	help     help.Model
	progress progress.Model
	view     cooldown.View
	feedback string
	status   string
	summary  string
	width    int
	visible  bool
	quitting bool
}

// NewModel creates an empty overlay model.
func NewModel(theme themes.Theme) Model {
	bar := progress.New(
		progress.WithSolidFill(string(theme.Primary)),
		progress.WithoutPercentage(),
	)
	bar.Width = maxBarWidth

	return Model{
		theme:    theme,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		progress: bar,
		width:    80,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(maxBarWidth, max(10, msg.Width-12))

	case showMsg:
		m.visible = true
		m.view = msg.view
		m.actions = msg.actions
		m.feedback = ""
		m.status = ""

	case viewMsg:
		m.view = msg.view

	case hideMsg:
		m.visible = false
		m.actions = cooldown.Actions{}

	case feedbackMsg:
		m.feedback = strings.TrimSpace(msg.feedback.Title + " " + msg.feedback.Message)

	case statusMsg:
		m.status = msg.text

	case doneMsg:
		m.summary = msg.summary
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case !m.visible:
		return m, nil

	case key.Matches(msg, m.keymap.Abandon):
		if m.actions.Abandon != nil {
			m.actions.Abandon()
		}

	case key.Matches(msg, m.keymap.Proceed):
		if !m.view.SkipAvailable {
			m.status = fmt.Sprintf("Continue unlocks after %ds.", m.view.SkipAfter)
			return m, nil
		}
		if m.actions.Proceed != nil {
			m.actions.Proceed()
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		if m.summary == "" {
			return ""
		}
		return m.summary + "\n"
	}

	var b strings.Builder
	if m.visible {
		b.WriteString(m.renderCard())
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(m.theme.Subtitle.Render(m.status))
		b.WriteString("\n")
	}
	if m.feedback != "" {
		b.WriteString(m.theme.Feedback.Render(m.feedback))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderCard() string {
	v := m.view
	t := m.theme

	lines := []string{t.Title.Render(v.Headline)}
	if v.Price != "" {
		price := t.Price.Render(v.Price)
		if v.Platform != "" {
			price += t.Subtitle.Render("  on " + v.Platform)
		}
		lines = append(lines, price)
	}
	if v.Message != "" {
		lines = append(lines, "", t.Italic.Render(v.Message))
	}
	for _, w := range v.Warnings {
		lines = append(lines, t.Warning.Render("⚠ "+w))
	}

	lines = append(lines,
		"",
		m.progress.ViewAs(elapsedRatio(v)),
		t.Subtitle.Render(fmt.Sprintf("%ds left", v.Remaining)),
		"",
		m.renderButtons(),
	)
	if m.status != "" {
		lines = append(lines, t.Subtitle.Render(m.status))
	}
	lines = append(lines, t.Help.Render(m.help.View(m.keymap)))

	return t.RoundedBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderButtons() string {
	stay := m.theme.ButtonPrimary.Render("Take more time")
	var proceed string
	if m.view.SkipAvailable {
		proceed = m.theme.ButtonActive.Render("Continue to purchase")
	} else {
		proceed = m.theme.ButtonLocked.Render(fmt.Sprintf("Continue in %ds", max(0, m.view.SkipAfter-(m.view.Total-m.view.Remaining))))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, stay, proceed)
}

func elapsedRatio(v cooldown.View) float64 {
	if v.Total <= 0 {
		return 1
	}
	r := float64(v.Total-v.Remaining) / float64(v.Total)
	return min(1, max(0, r))
}
