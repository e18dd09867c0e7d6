// Package nudge produces the reflection text shown during a cooldown. It
// supports a static prompt list and an Anthropic-backed generator, with a
// Safe wrapper that never fails.
package nudge
