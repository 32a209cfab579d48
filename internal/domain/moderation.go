package domain

// Verdict is the outcome of a moderation check. Transient: a verdict is never
// written to any cache or store, so policy changes take effect immediately.
type Verdict struct {
	Inappropriate bool
	Uncertain     bool
}
