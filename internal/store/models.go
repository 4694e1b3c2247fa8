package store

import (
	"encoding/json"
	"time"
)

// CacheEntry is one cached generation, keyed by fingerprint. The generated
// list is an opaque payload produced by the external generator; the store
// never inspects or rewrites it.
type CacheEntry struct {
	Fingerprint        string          `json:"fingerprint"`
	ProjectType        string          `json:"project_type"`
	Region             string          `json:"region"`
	GeneratedList      json.RawMessage `json:"generated_list"`
	Confidence         float64         `json:"confidence"`
	UsageCount         int64           `json:"usage_count"`
	ProjectDescription string          `json:"project_description"`
	CreatedAt          time.Time       `json:"created_at"`
	LastUsedAt         time.Time       `json:"last_used_at"`
}
