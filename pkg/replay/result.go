package replay

import "fmt"

// Result contains statistics from a replay run.
type Result struct {
	// Scanned counts log entries read, including skipped ones.
	Scanned int

	// Applied counts events folded into a preference state.
	Applied int

	// Anonymous counts events without a user, which never touch state.
	Anonymous int

	// Failed counts events whose update returned an error.
	Failed int

	// Cursor is the position of the last entry processed. Pass it back as
	// Options.After to continue.
	Cursor string
}

// Summary returns a human-readable summary of the replay result.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"Replay complete: %d applied, %d anonymous, %d failed\nScanned %d logged events",
		r.Applied, r.Anonymous, r.Failed, r.Scanned,
	)
}
