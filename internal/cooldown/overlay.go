package cooldown

import (
	"github.com/Veraticus/spendguard/internal/savings"
)

// View is everything an overlay renders for one frame of a session.
type View struct {
	SessionID     string
	Headline      string
	Product       string
	Price         string
	Platform      string
	Message       string
	Warnings      []string
	State         State
	Total         int
	Remaining     int
	SkipAfter     int
	SkipAvailable bool
}

// Actions are the user's choices. They are safe to call from any
// goroutine and are ignored once the session they belong to has ended.
type Actions struct {
	Proceed func()
	Abandon func()
}

// Overlay renders a session. Implementations must not block.
type Overlay interface {
	Show(v View, actions Actions) error
	Update(v View)
	Hide()
	Feedback(fb savings.Feedback)
}

type nopOverlay struct{}

func (nopOverlay) Show(View, Actions) error  { return nil }
func (nopOverlay) Update(View)               {}
func (nopOverlay) Hide()                     {}
func (nopOverlay) Feedback(savings.Feedback) {}
