package stats

import "time"

// EventType classifies a cache mutation for the aggregator.
type EventType string

const (
	// EventCreate records a new cache entry (first generation for a
	// fingerprint).
	EventCreate EventType = "create"

	// EventReuse records a cache hit on an existing entry.
	EventReuse EventType = "reuse"

	// EventPrune records an entry removed by the retention policy. All
	// aggregates the entry contributed to are decremented.
	EventPrune EventType = "prune"
)

// Event is one delta applied to the aggregator. Confidence and UsageCount
// reflect the entry's state after the operation; the aggregator keeps the
// previous values itself, so deltas stay exact even when a merge changed the
// confidence.
type Event struct {
	Type               EventType
	Fingerprint        string
	ProjectType        string
	Region             string
	Confidence         float64
	UsageCount         int64
	ProjectDescription string
	LastUsedAt         time.Time
}
