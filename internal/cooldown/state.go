// Package cooldown runs the timed reflection step between a purchase click
// and the moment the click is allowed through.
package cooldown

// State is the lifecycle position of a cooldown session.
type State int

// Session states. A session moves Idle → Counting → SkipUnlocked and ends in
// exactly one of Proceeded, Abandoned or Dismissed.
const (
	Idle State = iota
	Counting
	SkipUnlocked
	Proceeded
	Abandoned
	Dismissed
)

// MaxSkipDelay is the longest wait, in seconds, before the user may skip
// the rest of a cooldown.
const MaxSkipDelay = 5

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Counting:
		return "counting"
	case SkipUnlocked:
		return "skip-unlocked"
	case Proceeded:
		return "proceeded"
	case Abandoned:
		return "abandoned"
	case Dismissed:
		return "dismissed"
	default:
		return "unknown"
	}
}

// Resolved reports whether s is terminal.
func (s State) Resolved() bool {
	return s == Proceeded || s == Abandoned || s == Dismissed
}

// SkipDelay returns the number of seconds before skipping unlocks for a
// cooldown of the given length.
func SkipDelay(cooldownSeconds int) int {
	return min(MaxSkipDelay, cooldownSeconds)
}
