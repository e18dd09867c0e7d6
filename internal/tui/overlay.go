package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/spendguard/internal/cooldown"
	"github.com/Veraticus/spendguard/internal/savings"
	"github.com/Veraticus/spendguard/internal/tui/themes"
)

var _ cooldown.Overlay = (*Overlay)(nil)

// Overlay forwards cooldown frames to a running bubbletea program. Send
// returns once the program has received the message or has exited.
type Overlay struct {
	program *tea.Program
}

// NewProgram creates the overlay program with theme.
func NewProgram(theme themes.Theme, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(NewModel(theme), opts...)
}

// NewOverlay wraps program.
func NewOverlay(program *tea.Program) *Overlay {
	return &Overlay{program: program}
}

// Show implements cooldown.Overlay.
func (o *Overlay) Show(v cooldown.View, actions cooldown.Actions) error {
	o.program.Send(showMsg{view: v, actions: actions})
	return nil
}

// Update implements cooldown.Overlay.
func (o *Overlay) Update(v cooldown.View) {
	o.program.Send(viewMsg{view: v})
}

// Hide implements cooldown.Overlay.
func (o *Overlay) Hide() {
	o.program.Send(hideMsg{})
}

// Feedback implements cooldown.Overlay.
func (o *Overlay) Feedback(fb savings.Feedback) {
	o.program.Send(feedbackMsg{feedback: fb})
}

// Status shows a one-line note below the card.
func (o *Overlay) Status(text string) {
	o.program.Send(statusMsg{text: text})
}

// Done prints summary and ends the program.
func (o *Overlay) Done(summary string) {
	o.program.Send(doneMsg{summary: summary})
}
