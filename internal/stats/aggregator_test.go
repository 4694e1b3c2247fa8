package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/g3lasio/deepsearchd/internal/store"
)

func createEvent(fp, projectType, region string, confidence float64) Event {
	return Event{
		Type:        EventCreate,
		Fingerprint: fp,
		ProjectType: projectType,
		Region:      region,
		Confidence:  confidence,
		UsageCount:  1,
		LastUsedAt:  time.Now().UTC(),
	}
}

func reuseEvent(fp, projectType, region string, confidence float64) Event {
	return Event{
		Type:        EventReuse,
		Fingerprint: fp,
		ProjectType: projectType,
		Region:      region,
		Confidence:  confidence,
		LastUsedAt:  time.Now().UTC(),
	}
}

func mustApply(t *testing.T, a *Aggregator, ev Event) {
	t.Helper()
	if err := a.Apply(ev); err != nil {
		t.Fatalf("apply %s %s: %v", ev.Type, ev.Fingerprint, err)
	}
}

func TestApply_CreateAndReuse(t *testing.T) {
	a := New(10)

	mustApply(t, a, createEvent("fp-1", "fence", "TX", 0.8))
	mustApply(t, a, reuseEvent("fp-1", "fence", "TX", 0.8))

	snap := a.Snapshot()
	if snap.Global.TotalLists != 1 {
		t.Fatalf("totalLists = %d, want 1", snap.Global.TotalLists)
	}
	if snap.Global.TotalReuses != 1 {
		t.Fatalf("totalReuses = %d, want 1", snap.Global.TotalReuses)
	}
	if snap.Global.SavedGenerations != 1 {
		t.Fatalf("savedGenerations = %d, want 1", snap.Global.SavedGenerations)
	}
	if snap.Global.UniqueRegions != 1 || snap.Global.UniqueProjectTypes != 1 {
		t.Fatalf("unique counts = %d/%d, want 1/1",
			snap.Global.UniqueRegions, snap.Global.UniqueProjectTypes)
	}
	if snap.Global.AvgGlobalConfidence != 0.8 {
		t.Fatalf("avgGlobalConfidence = %v, want 0.8", snap.Global.AvgGlobalConfidence)
	}
	if snap.Collaborative.ReuseRate != 1 {
		t.Fatalf("reuseRate = %d, want 1", snap.Collaborative.ReuseRate)
	}
}

func TestApply_ByProjectType(t *testing.T) {
	a := New(10)

	mustApply(t, a, createEvent("fp-1", "fence", "TX", 0.9))
	mustApply(t, a, createEvent("fp-2", "fence", "OK", 0.7))
	mustApply(t, a, createEvent("fp-3", "roof", "TX", 0.5))
	mustApply(t, a, reuseEvent("fp-1", "fence", "TX", 0.9))
	mustApply(t, a, reuseEvent("fp-1", "fence", "TX", 0.9))

	snap := a.Snapshot()
	if len(snap.ByProjectType) != 2 {
		t.Fatalf("buckets = %d, want 2", len(snap.ByProjectType))
	}

	// fence has more usage, so it sorts first.
	fence := snap.ByProjectType[0]
	if fence.ProjectType != "fence" {
		t.Fatalf("first bucket = %q, want fence", fence.ProjectType)
	}
	if fence.TotalProjects != 2 || fence.TotalUsage != 4 {
		t.Fatalf("fence projects/usage = %d/%d, want 2/4", fence.TotalProjects, fence.TotalUsage)
	}
	if fence.RegionsCovered != 2 {
		t.Fatalf("fence regionsCovered = %d, want 2", fence.RegionsCovered)
	}
	// Usage-weighted: (3*0.9 + 1*0.7) / 4.
	if math.Abs(fence.AvgConfidence-0.85) > 1e-9 {
		t.Fatalf("fence avgConfidence = %v, want 0.85", fence.AvgConfidence)
	}

	if snap.Collaborative.CrossRegionalProjects != 1 {
		t.Fatalf("crossRegionalProjects = %d, want 1", snap.Collaborative.CrossRegionalProjects)
	}
	// fence covers 2 regions, roof covers 1.
	if math.Abs(snap.Collaborative.AverageRegionsPerProject-1.5) > 1e-9 {
		t.Fatalf("averageRegionsPerProject = %v, want 1.5", snap.Collaborative.AverageRegionsPerProject)
	}
}

func TestApply_ConfidenceMergeStaysExact(t *testing.T) {
	a := New(10)
	mustApply(t, a, createEvent("fp-1", "fence", "TX", 0.8))

	// A racing put merged the confidence down to 0.6; the reuse event
	// carries the post-merge value.
	mustApply(t, a, reuseEvent("fp-1", "fence", "TX", 0.6))

	snap := a.Snapshot()
	if snap.Global.AvgGlobalConfidence != 0.6 {
		t.Fatalf("avgGlobalConfidence = %v, want 0.6", snap.Global.AvgGlobalConfidence)
	}
}

func TestApply_TopReused(t *testing.T) {
	a := New(3)

	for i := 1; i <= 5; i++ {
		fp := fmt.Sprintf("fp-%d", i)
		mustApply(t, a, createEvent(fp, "fence", "TX", 0.5))
		for range i {
			mustApply(t, a, reuseEvent(fp, "fence", "TX", 0.5))
		}
	}

	snap := a.Snapshot()
	if len(snap.TopReused) != 3 {
		t.Fatalf("topReused len = %d, want 3", len(snap.TopReused))
	}
	wantCounts := []int64{6, 5, 4}
	for i, want := range wantCounts {
		if snap.TopReused[i].UsageCount != want {
			t.Fatalf("topReused[%d].usageCount = %d, want %d (full: %+v)",
				i, snap.TopReused[i].UsageCount, want, snap.TopReused)
		}
	}
}

func TestApply_TopReusedPromotion(t *testing.T) {
	a := New(2)

	mustApply(t, a, createEvent("fp-a", "fence", "TX", 0.5))
	mustApply(t, a, createEvent("fp-b", "fence", "TX", 0.5))
	mustApply(t, a, createEvent("fp-c", "fence", "TX", 0.5))
	mustApply(t, a, reuseEvent("fp-a", "fence", "TX", 0.5))
	mustApply(t, a, reuseEvent("fp-b", "fence", "TX", 0.5))

	// fp-c starts outside the board, then overtakes everyone.
	for range 5 {
		mustApply(t, a, reuseEvent("fp-c", "fence", "TX", 0.5))
	}

	snap := a.Snapshot()
	if len(snap.TopReused) != 2 {
		t.Fatalf("topReused len = %d, want 2", len(snap.TopReused))
	}
	if snap.TopReused[0].UsageCount != 6 {
		t.Fatalf("leader usageCount = %d, want 6", snap.TopReused[0].UsageCount)
	}
}

func TestApply_Prune(t *testing.T) {
	a := New(10)

	mustApply(t, a, createEvent("fp-1", "fence", "TX", 0.8))
	mustApply(t, a, createEvent("fp-2", "roof", "CA", 0.6))
	mustApply(t, a, reuseEvent("fp-2", "roof", "CA", 0.6))

	mustApply(t, a, Event{
		Type: EventPrune, Fingerprint: "fp-2", ProjectType: "roof", Region: "CA",
	})

	snap := a.Snapshot()
	if snap.Global.TotalLists != 1 {
		t.Fatalf("totalLists = %d, want 1", snap.Global.TotalLists)
	}
	if snap.Global.TotalReuses != 0 {
		t.Fatalf("totalReuses = %d, want 0", snap.Global.TotalReuses)
	}
	if snap.Global.UniqueRegions != 1 || snap.Global.UniqueProjectTypes != 1 {
		t.Fatalf("unique counts = %d/%d, want 1/1",
			snap.Global.UniqueRegions, snap.Global.UniqueProjectTypes)
	}
	if len(snap.TopReused) != 1 || snap.TopReused[0].ProjectType != "fence" {
		t.Fatalf("topReused = %+v, want just the fence entry", snap.TopReused)
	}
	if snap.Global.AvgGlobalConfidence != 0.8 {
		t.Fatalf("avgGlobalConfidence = %v, want 0.8", snap.Global.AvgGlobalConfidence)
	}
}

func TestApply_Inconsistencies(t *testing.T) {
	a := New(10)
	mustApply(t, a, createEvent("fp-1", "fence", "TX", 0.8))

	cases := []Event{
		createEvent("fp-1", "fence", "TX", 0.8),           // duplicate create
		reuseEvent("fp-ghost", "fence", "TX", 0.8),        // unknown reuse
		{Type: EventPrune, Fingerprint: "fp-ghost", ProjectType: "fence", Region: "TX"},
		{Type: EventReuse, ProjectType: "fence", Region: "TX"}, // empty fingerprint
		{Type: "upsert", Fingerprint: "fp-1", ProjectType: "fence", Region: "TX"},
	}
	for _, ev := range cases {
		if err := a.Apply(ev); !errors.Is(err, ErrInconsistent) {
			t.Fatalf("event %+v: err = %v, want ErrInconsistent", ev, err)
		}
	}
	if a.Consistent() {
		t.Fatal("aggregator should be flagged inconsistent")
	}
}

func TestSnapshot_Immutable(t *testing.T) {
	a := New(10)
	mustApply(t, a, createEvent("fp-1", "fence", "TX", 0.8))

	s1 := a.Snapshot()
	mustApply(t, a, reuseEvent("fp-1", "fence", "TX", 0.8))

	if s1.Global.TotalReuses != 0 {
		t.Fatal("earlier snapshot mutated by later event")
	}
}

func TestSnapshot_JSONShape(t *testing.T) {
	a := New(10)
	mustApply(t, a, createEvent("fp-1", "fence", "TX", 0.8))

	data, err := json.Marshal(a.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{
		`"global"`, `"totalLists"`, `"totalReuses"`, `"uniqueRegions"`,
		`"uniqueProjectTypes"`, `"avgGlobalConfidence"`, `"savedGenerations"`,
		`"byProjectType"`, `"projectType"`, `"totalProjects"`, `"totalUsage"`,
		`"avgConfidence"`, `"regionsCovered"`, `"topReused"`, `"usageCount"`,
		`"projectDescription"`, `"collaborativeMetrics"`, `"reuseRate"`,
		`"crossRegionalProjects"`, `"averageRegionsPerProject"`,
	} {
		if !strings.Contains(string(data), field) {
			t.Errorf("snapshot json missing %s: %s", field, data)
		}
	}
}

func TestApply_ConcurrentWriters(t *testing.T) {
	a := New(10)
	mustApply(t, a, createEvent("fp-1", "fence", "TX", 0.8))

	const writers = 20
	const perWriter = 50
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWriter {
				if err := a.Apply(reuseEvent("fp-1", "fence", "TX", 0.8)); err != nil {
					t.Errorf("apply: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	snap := a.Snapshot()
	if want := int64(writers * perWriter); snap.Global.TotalReuses != want {
		t.Fatalf("totalReuses = %d, want %d", snap.Global.TotalReuses, want)
	}
}

// scanStub satisfies store.EntryStore for rebuild tests.
type scanStub struct {
	store.EntryStore
	entries []store.CacheEntry
}

func (s *scanStub) ScanEntries(_ context.Context, fn func(*store.CacheEntry) error) error {
	for i := range s.entries {
		if err := fn(&s.entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func TestRebuild(t *testing.T) {
	a := New(10)

	// Poison the aggregator, then rebuild from the authoritative store.
	if err := a.Apply(reuseEvent("fp-ghost", "fence", "TX", 0.5)); err == nil {
		t.Fatal("expected inconsistency")
	}

	stub := &scanStub{entries: []store.CacheEntry{
		{Fingerprint: "fp-1", ProjectType: "fence", Region: "TX", Confidence: 0.8, UsageCount: 3},
		{Fingerprint: "fp-2", ProjectType: "roof", Region: "CA", Confidence: 0.6, UsageCount: 1},
	}}
	if err := a.Rebuild(context.Background(), stub); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if !a.Consistent() {
		t.Fatal("aggregator should be consistent after rebuild")
	}
	if a.LastRebuild().IsZero() {
		t.Fatal("lastRebuild not recorded")
	}

	snap := a.Snapshot()
	if snap.Global.TotalLists != 2 {
		t.Fatalf("totalLists = %d, want 2", snap.Global.TotalLists)
	}
	if snap.Global.TotalReuses != 2 {
		t.Fatalf("totalReuses = %d, want 2 (usage 3 entry)", snap.Global.TotalReuses)
	}
	// (3*0.8 + 1*0.6) / 4 = 0.75.
	if math.Abs(snap.Global.AvgGlobalConfidence-0.75) > 1e-9 {
		t.Fatalf("avgGlobalConfidence = %v, want 0.75", snap.Global.AvgGlobalConfidence)
	}
}
