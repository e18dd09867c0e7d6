package tui

import (
	"github.com/Veraticus/spendguard/internal/cooldown"
	"github.com/Veraticus/spendguard/internal/savings"
)

// Messages sent from the engine goroutine into the program.
type showMsg struct {
	actions cooldown.Actions
	view    cooldown.View
}

type viewMsg struct {
	view cooldown.View
}

type hideMsg struct{}

type feedbackMsg struct {
	feedback savings.Feedback
}

type statusMsg struct {
	text string
}

type doneMsg struct {
	summary string
}
