// Package stats maintains the global DeepSearch cache statistics
// incrementally from a stream of create/reuse/prune events. The read path
// never scans the cache store; a full recompute happens only at boot or
// after a detected inconsistency.
package stats

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/g3lasio/deepsearchd/internal/store"
)

// ErrInconsistent indicates an event contradicted the aggregator's state
// (duplicate create, reuse of an unknown fingerprint, malformed event).
// The aggregator marks itself inconsistent; callers trigger a Rebuild.
var ErrInconsistent = errors.New("stats inconsistency")

// DefaultTopN is the leaderboard size when none is configured.
const DefaultTopN = 10

// entryRecord is the aggregator's view of one cache entry.
type entryRecord struct {
	fingerprint string
	projectType string
	region      string
	description string
	usageCount  int64
	confidence  float64
	lastUsedAt  time.Time
	heapIndex   int // -1 when not in the top-N heap
}

// typeBucket accumulates per-project-type rollups.
type typeBucket struct {
	totalProjects   int64
	totalUsage      int64
	weightedConfSum float64
	regions         map[string]int64 // region -> entry refcount
}

// Aggregator is the single logical writer for all derived statistics.
// Every mutation goes through Apply under one mutex; Snapshot copies out
// under the same mutex so readers never observe a partial update.
type Aggregator struct {
	mu sync.Mutex

	entries map[string]*entryRecord
	types   map[string]*typeBucket
	regions map[string]int64 // region -> entry refcount, across all types

	totalReuses     int64
	totalUsage      int64
	weightedConfSum float64

	top  topHeap
	topN int

	consistent  bool
	lastRebuild time.Time
}

// New creates an empty aggregator keeping a top-N leaderboard of the given
// size (DefaultTopN if size is not positive).
func New(topN int) *Aggregator {
	if topN <= 0 {
		topN = DefaultTopN
	}
	a := &Aggregator{topN: topN, consistent: true}
	a.resetLocked()
	return a
}

func (a *Aggregator) resetLocked() {
	a.entries = make(map[string]*entryRecord)
	a.types = make(map[string]*typeBucket)
	a.regions = make(map[string]int64)
	a.totalReuses = 0
	a.totalUsage = 0
	a.weightedConfSum = 0
	a.top = a.top[:0]
}

// Apply folds one event into the aggregates. O(log N) in the leaderboard
// size for create/reuse. An error means the event contradicted known state;
// the aggregator flags itself inconsistent and the caller should schedule a
// Rebuild — the event is never dropped silently.
func (a *Aggregator) Apply(ev Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ev.Fingerprint == "" || ev.ProjectType == "" || ev.Region == "" {
		a.consistent = false
		return fmt.Errorf("%w: %s event with empty identity fields", ErrInconsistent, ev.Type)
	}

	switch ev.Type {
	case EventCreate:
		if _, ok := a.entries[ev.Fingerprint]; ok {
			a.consistent = false
			return fmt.Errorf("%w: duplicate create for %s", ErrInconsistent, ev.Fingerprint)
		}
		a.addLocked(ev)
	case EventReuse:
		rec, ok := a.entries[ev.Fingerprint]
		if !ok {
			a.consistent = false
			return fmt.Errorf("%w: reuse of unknown fingerprint %s", ErrInconsistent, ev.Fingerprint)
		}
		a.reuseLocked(rec, ev)
	case EventPrune:
		rec, ok := a.entries[ev.Fingerprint]
		if !ok {
			a.consistent = false
			return fmt.Errorf("%w: prune of unknown fingerprint %s", ErrInconsistent, ev.Fingerprint)
		}
		a.removeLocked(rec)
	default:
		a.consistent = false
		return fmt.Errorf("%w: unknown event type %q", ErrInconsistent, ev.Type)
	}
	return nil
}

func (a *Aggregator) addLocked(ev Event) {
	usage := ev.UsageCount
	if usage < 1 {
		usage = 1
	}
	rec := &entryRecord{
		fingerprint: ev.Fingerprint,
		projectType: ev.ProjectType,
		region:      ev.Region,
		description: ev.ProjectDescription,
		usageCount:  usage,
		confidence:  ev.Confidence,
		lastUsedAt:  ev.LastUsedAt,
		heapIndex:   -1,
	}
	a.entries[ev.Fingerprint] = rec

	bucket, ok := a.types[rec.projectType]
	if !ok {
		bucket = &typeBucket{regions: make(map[string]int64)}
		a.types[rec.projectType] = bucket
	}
	bucket.totalProjects++
	bucket.totalUsage += usage
	bucket.weightedConfSum += float64(usage) * rec.confidence
	bucket.regions[rec.region]++
	a.regions[rec.region]++

	a.totalReuses += usage - 1
	a.totalUsage += usage
	a.weightedConfSum += float64(usage) * rec.confidence

	a.offerTopLocked(rec)
}

func (a *Aggregator) reuseLocked(rec *entryRecord, ev Event) {
	bucket := a.types[rec.projectType]

	// Every RecordHit emits exactly one reuse event, so the delta is always
	// one regardless of how concurrent events interleave; trusting the
	// event's absolute counter would double-count under reordering.
	const delta = 1

	// Back out the entry's usage-weighted confidence, then re-add with the
	// post-merge values so the running mean stays exact.
	a.weightedConfSum -= float64(rec.usageCount) * rec.confidence
	bucket.weightedConfSum -= float64(rec.usageCount) * rec.confidence

	rec.usageCount += delta
	rec.confidence = ev.Confidence
	if ev.LastUsedAt.After(rec.lastUsedAt) {
		rec.lastUsedAt = ev.LastUsedAt
	}

	a.weightedConfSum += float64(rec.usageCount) * rec.confidence
	bucket.weightedConfSum += float64(rec.usageCount) * rec.confidence
	bucket.totalUsage += delta
	a.totalUsage += delta
	a.totalReuses += delta

	if rec.heapIndex >= 0 {
		heap.Fix(&a.top, rec.heapIndex)
	} else {
		a.offerTopLocked(rec)
	}
}

func (a *Aggregator) removeLocked(rec *entryRecord) {
	delete(a.entries, rec.fingerprint)

	bucket := a.types[rec.projectType]
	bucket.totalProjects--
	bucket.totalUsage -= rec.usageCount
	bucket.weightedConfSum -= float64(rec.usageCount) * rec.confidence
	if bucket.regions[rec.region]--; bucket.regions[rec.region] <= 0 {
		delete(bucket.regions, rec.region)
	}
	if bucket.totalProjects <= 0 {
		delete(a.types, rec.projectType)
	}
	if a.regions[rec.region]--; a.regions[rec.region] <= 0 {
		delete(a.regions, rec.region)
	}

	a.totalReuses -= rec.usageCount - 1
	a.totalUsage -= rec.usageCount
	a.weightedConfSum -= float64(rec.usageCount) * rec.confidence

	if rec.heapIndex >= 0 {
		heap.Remove(&a.top, rec.heapIndex)
		a.refillTopLocked()
	}
}

// offerTopLocked adds rec to the leaderboard if it qualifies.
func (a *Aggregator) offerTopLocked(rec *entryRecord) {
	if len(a.top) < a.topN {
		heap.Push(&a.top, rec)
		return
	}
	if beats(rec, a.top[0]) {
		evicted := heap.Pop(&a.top).(*entryRecord)
		evicted.heapIndex = -1
		heap.Push(&a.top, rec)
	}
}

// refillTopLocked backfills the leaderboard after a pruned member left it.
// This scans all entries, which is fine: pruning is a rare background
// operation, never the request path.
func (a *Aggregator) refillTopLocked() {
	if len(a.top) >= a.topN {
		return
	}
	var best *entryRecord
	for _, rec := range a.entries {
		if rec.heapIndex >= 0 {
			continue
		}
		if best == nil || beats(rec, best) {
			best = rec
		}
	}
	if best != nil {
		heap.Push(&a.top, best)
	}
}

// Snapshot returns an immutable copy of all aggregates.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		Global: GlobalStats{
			TotalLists:         int64(len(a.entries)),
			TotalReuses:        a.totalReuses,
			UniqueRegions:      len(a.regions),
			UniqueProjectTypes: len(a.types),
			SavedGenerations:   a.totalReuses,
		},
		ByProjectType: make([]ProjectTypeStats, 0, len(a.types)),
		TopReused:     make([]TopReusedEntry, 0, len(a.top)),
	}
	if a.totalUsage > 0 {
		snap.Global.AvgGlobalConfidence = a.weightedConfSum / float64(a.totalUsage)
	}

	var regionsSum int
	for name, bucket := range a.types {
		pt := ProjectTypeStats{
			ProjectType:    name,
			TotalProjects:  bucket.totalProjects,
			TotalUsage:     bucket.totalUsage,
			RegionsCovered: len(bucket.regions),
		}
		if bucket.totalUsage > 0 {
			pt.AvgConfidence = bucket.weightedConfSum / float64(bucket.totalUsage)
		}
		if len(bucket.regions) > 1 {
			snap.Collaborative.CrossRegionalProjects++
		}
		regionsSum += len(bucket.regions)
		snap.ByProjectType = append(snap.ByProjectType, pt)
	}
	sort.Slice(snap.ByProjectType, func(i, j int) bool {
		x, y := snap.ByProjectType[i], snap.ByProjectType[j]
		if x.TotalUsage != y.TotalUsage {
			return x.TotalUsage > y.TotalUsage
		}
		return x.ProjectType < y.ProjectType
	})

	top := make([]*entryRecord, len(a.top))
	copy(top, a.top)
	sort.Slice(top, func(i, j int) bool { return beats(top[i], top[j]) })
	for _, rec := range top {
		snap.TopReused = append(snap.TopReused, TopReusedEntry{
			ProjectType:        rec.projectType,
			Region:             rec.region,
			UsageCount:         rec.usageCount,
			Confidence:         rec.confidence,
			ProjectDescription: rec.description,
		})
	}

	snap.Collaborative.ReuseRate = a.totalReuses
	if len(a.types) > 0 {
		snap.Collaborative.AverageRegionsPerProject = float64(regionsSum) / float64(len(a.types))
	}
	return snap
}

// Consistent reports whether every event applied cleanly since the last
// rebuild.
func (a *Aggregator) Consistent() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.consistent
}

// LastRebuild returns when the aggregator was last rebuilt from the store
// (zero if never).
func (a *Aggregator) LastRebuild() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRebuild
}

// Rebuild recomputes every aggregate from a full store scan. Used at boot
// and after an inconsistency; never on the request path.
func (a *Aggregator) Rebuild(ctx context.Context, entries store.EntryStore) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.resetLocked()
	err := entries.ScanEntries(ctx, func(e *store.CacheEntry) error {
		a.addLocked(Event{
			Type:               EventCreate,
			Fingerprint:        e.Fingerprint,
			ProjectType:        e.ProjectType,
			Region:             e.Region,
			Confidence:         e.Confidence,
			UsageCount:         e.UsageCount,
			ProjectDescription: e.ProjectDescription,
			LastUsedAt:         e.LastUsedAt,
		})
		return nil
	})
	if err != nil {
		a.consistent = false
		return fmt.Errorf("rebuild stats: %w", err)
	}
	a.consistent = true
	a.lastRebuild = time.Now().UTC()
	return nil
}
