package incident

import "time"

// AffectionInfo is the derived public status-page state for an incident,
// folded from the AFFECTION_UPDATE events in its log. It is recomputed each
// turn rather than cached, so it always reflects the current log.
type AffectionInfo struct {
	// HasAffection reports whether a public status-page record has ever been
	// attached to this incident.
	HasAffection bool
	// LastStatus is the affection's most recently applied lifecycle status.
	// Nil when HasAffection is false.
	LastStatus *AffectionStatus
	// LastUpdateAt is the timestamp of the most recent AFFECTION_UPDATE event.
	// Nil when HasAffection is false.
	LastUpdateAt *time.Time
}
