// Package cache orchestrates the DeepSearch generation cache: fingerprint a
// request, serve it from the store when possible, and otherwise run exactly
// one external generation per fingerprint regardless of how many callers
// storm in at once.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/g3lasio/deepsearchd/internal/confidence"
	"github.com/g3lasio/deepsearchd/internal/fingerprint"
	"github.com/g3lasio/deepsearchd/internal/flight"
	"github.com/g3lasio/deepsearchd/internal/generator"
	"github.com/g3lasio/deepsearchd/internal/metrics"
	"github.com/g3lasio/deepsearchd/internal/stats"
	"github.com/g3lasio/deepsearchd/internal/store"
)

// ErrInvalidRequest mirrors the fingerprint builder's rejection so callers
// can check a single sentinel at this layer.
var ErrInvalidRequest = fingerprint.ErrInvalidRequest

// Result is the outcome of a Generate or Lookup call.
type Result struct {
	Fingerprint   string          `json:"fingerprint"`
	GeneratedList json.RawMessage `json:"generatedList"`
	Confidence    float64         `json:"confidence"`
	CacheHit      bool            `json:"cacheHit"`
	UsageCount    int64           `json:"usageCount"`

	// Degraded is set when the store was unreachable and the service fell
	// back to generate-without-caching (degraded mode only).
	Degraded bool `json:"degraded,omitempty"`
}

// Options tunes the service.
type Options struct {
	// GenerationTimeout bounds each external generator call. The timeout is
	// independent of any single caller's deadline: a generation outlives the
	// caller that triggered it so waiters and the cache still benefit.
	GenerationTimeout time.Duration

	// DegradedMode lets Generate bypass an unreachable store and call the
	// generator (still single-flighted) instead of failing closed.
	DegradedMode bool
}

// Service is the cache's only entry point.
type Service struct {
	store   store.Store
	gen     generator.Generator
	agg     *stats.Aggregator
	flights *flight.Group[string, *store.CacheEntry]

	genTimeout   time.Duration
	degradedMode bool

	rebuilding atomic.Bool
}

// NewService wires a cache service. The aggregator should already be seeded
// (see RebuildStats) before serving traffic.
func NewService(st store.Store, gen generator.Generator, agg *stats.Aggregator, opts Options) *Service {
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = 2 * time.Minute
	}
	return &Service{
		store:        st,
		gen:          gen,
		agg:          agg,
		flights:      flight.NewGroup[string, *store.CacheEntry](),
		genTimeout:   opts.GenerationTimeout,
		degradedMode: opts.DegradedMode,
	}
}

// Generate returns the cached list for the request's fingerprint, or runs
// (or joins) exactly one external generation for it.
func (s *Service) Generate(ctx context.Context, req generator.Request) (*Result, error) {
	fp, err := fingerprint.Build(req.ProjectType, req.Region, req.ScopeParams)
	if err != nil {
		return nil, err
	}

	_, err = s.store.GetEntry(ctx, fp)
	switch {
	case err == nil:
		res, hitErr := s.serveHit(ctx, fp)
		if hitErr == nil {
			return res, nil
		}
		// The entry can vanish between Get and RecordHit (pruned); treat
		// that as a miss, anything else is a real failure.
		if !errors.Is(hitErr, store.ErrNotFound) {
			return nil, hitErr
		}
		metrics.CacheMisses.Inc()
	case errors.Is(err, store.ErrNotFound):
		metrics.CacheMisses.Inc()
	default:
		return s.storeFailure(ctx, fp, req, err)
	}

	entry, leader, err := s.flights.Execute(ctx, fp, func() (*store.CacheEntry, error) {
		return s.generateAndStore(ctx, fp, req)
	})
	if err != nil {
		return nil, err
	}
	if !leader {
		metrics.FlightJoins.Inc()
		return s.serveHit(ctx, fp)
	}

	return &Result{
		Fingerprint:   entry.Fingerprint,
		GeneratedList: entry.GeneratedList,
		Confidence:    entry.Confidence,
		CacheHit:      false,
		UsageCount:    entry.UsageCount,
	}, nil
}

// Lookup checks the cache without ever invoking the generator. A hit counts
// as a reuse exactly like a Generate hit; found=false costs nothing.
func (s *Service) Lookup(ctx context.Context, req generator.Request) (*Result, bool, error) {
	fp, err := fingerprint.Build(req.ProjectType, req.Region, req.ScopeParams)
	if err != nil {
		return nil, false, err
	}

	_, err = s.store.GetEntry(ctx, fp)
	switch {
	case errors.Is(err, store.ErrNotFound):
		metrics.CacheMisses.Inc()
		return &Result{Fingerprint: fp}, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("lookup %s: %w", fp, err)
	}

	res, err := s.serveHit(ctx, fp)
	if err != nil {
		// Same race as Generate: the entry can be pruned between Get and
		// RecordHit. That is a miss, not a failure.
		if errors.Is(err, store.ErrNotFound) {
			metrics.CacheMisses.Inc()
			return &Result{Fingerprint: fp}, false, nil
		}
		return nil, false, err
	}
	return res, true, nil
}

// serveHit records a reuse on an existing entry and builds the hit result.
func (s *Service) serveHit(ctx context.Context, fp string) (*Result, error) {
	entry, err := s.store.RecordHit(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("record hit %s: %w", fp, err)
	}
	metrics.CacheHits.Inc()
	s.applyEvent(stats.Event{
		Type:               stats.EventReuse,
		Fingerprint:        entry.Fingerprint,
		ProjectType:        entry.ProjectType,
		Region:             entry.Region,
		Confidence:         entry.Confidence,
		UsageCount:         entry.UsageCount,
		ProjectDescription: entry.ProjectDescription,
		LastUsedAt:         entry.LastUsedAt,
	})
	return &Result{
		Fingerprint:   entry.Fingerprint,
		GeneratedList: entry.GeneratedList,
		Confidence:    entry.Confidence,
		CacheHit:      true,
		UsageCount:    entry.UsageCount,
	}, nil
}

// generateAndStore is the single-flight leader body: call the generator,
// then create the entry — or, if a racing creator won, fold this generation
// into the existing entry instead of overwriting its history.
func (s *Service) generateAndStore(ctx context.Context, fp string, req generator.Request) (*store.CacheEntry, error) {
	res, err := s.invokeGenerator(ctx, req)
	if err != nil {
		return nil, err
	}

	entry := &store.CacheEntry{
		Fingerprint:        fp,
		ProjectType:        fingerprint.Normalize(req.ProjectType),
		Region:             fingerprint.CanonicalRegion(req.Region),
		GeneratedList:      res.List,
		Confidence:         confidence.Clamp(res.Confidence),
		UsageCount:         1,
		ProjectDescription: strings.TrimSpace(req.Description),
	}

	createCtx := context.WithoutCancel(ctx)
	err = s.store.CreateEntry(createCtx, entry)
	switch {
	case err == nil:
		s.applyEvent(stats.Event{
			Type:               stats.EventCreate,
			Fingerprint:        entry.Fingerprint,
			ProjectType:        entry.ProjectType,
			Region:             entry.Region,
			Confidence:         entry.Confidence,
			UsageCount:         entry.UsageCount,
			ProjectDescription: entry.ProjectDescription,
			LastUsedAt:         entry.LastUsedAt,
		})
		return entry, nil
	case errors.Is(err, store.ErrAlreadyExists):
		return s.mergeIntoExisting(createCtx, fp, res.Confidence)
	default:
		return nil, fmt.Errorf("create entry %s: %w", fp, err)
	}
}

// mergeIntoExisting handles the racing-put case: the generation still
// happened, so its confidence signal is merged into the surviving entry and
// the call is counted as a hit. Last-writer-wins is deliberately impossible.
func (s *Service) mergeIntoExisting(ctx context.Context, fp string, incoming float64) (*store.CacheEntry, error) {
	var merged *store.CacheEntry
	err := s.store.Tx(ctx, func(tx store.Store) error {
		entry, err := tx.RecordHit(ctx, fp)
		if err != nil {
			return err
		}
		entry.Confidence = confidence.Merge(entry.Confidence, incoming, entry.UsageCount)
		if err := tx.UpdateConfidence(ctx, fp, entry.Confidence); err != nil {
			return err
		}
		merged = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("merge racing put %s: %w", fp, err)
	}

	metrics.CacheHits.Inc()
	s.applyEvent(stats.Event{
		Type:               stats.EventReuse,
		Fingerprint:        merged.Fingerprint,
		ProjectType:        merged.ProjectType,
		Region:             merged.Region,
		Confidence:         merged.Confidence,
		UsageCount:         merged.UsageCount,
		ProjectDescription: merged.ProjectDescription,
		LastUsedAt:         merged.LastUsedAt,
	})
	return merged, nil
}

// invokeGenerator calls the external generator detached from the caller's
// cancellation: the caller may time out and walk away, but the generation
// runs to completion (bounded by its own timeout) for the waiters and the
// cache.
func (s *Service) invokeGenerator(ctx context.Context, req generator.Request) (*generator.Result, error) {
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.genTimeout)
	defer cancel()

	metrics.Generations.Inc()
	start := time.Now()
	res, err := s.gen.Generate(genCtx, req)
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationErrors.Inc()
		if errors.Is(err, generator.ErrGenerationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", generator.ErrGenerationFailed, err)
	}
	return res, nil
}

// storeFailure handles a store error on the read path: fail closed, or in
// degraded mode generate without caching, clearly flagged.
func (s *Service) storeFailure(ctx context.Context, fp string, req generator.Request, storeErr error) (*Result, error) {
	if !s.degradedMode {
		if !errors.Is(storeErr, store.ErrUnavailable) {
			storeErr = fmt.Errorf("%w: %v", store.ErrUnavailable, storeErr)
		}
		return nil, fmt.Errorf("get entry %s: %w", fp, storeErr)
	}

	slog.Warn("store unavailable, serving degraded generation",
		"fingerprint", fp, "error", storeErr)

	// Still single-flighted per fingerprint: degraded mode must never turn
	// one request storm into unbounded generator calls.
	entry, _, err := s.flights.Execute(ctx, "degraded\x00"+fp, func() (*store.CacheEntry, error) {
		res, err := s.invokeGenerator(ctx, req)
		if err != nil {
			return nil, err
		}
		return &store.CacheEntry{
			Fingerprint:   fp,
			GeneratedList: res.List,
			Confidence:    confidence.Clamp(res.Confidence),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Fingerprint:   fp,
		GeneratedList: entry.GeneratedList,
		Confidence:    entry.Confidence,
		Degraded:      true,
	}, nil
}

// applyEvent feeds the aggregator. An apply failure is a bug, never a
// request failure: it is logged, surfaced through health, and repaired with
// a background rebuild.
func (s *Service) applyEvent(ev stats.Event) {
	if err := s.agg.Apply(ev); err != nil {
		slog.Error("stats event rejected, scheduling rebuild",
			"type", ev.Type, "fingerprint", ev.Fingerprint, "error", err)
		s.scheduleRebuild()
	}
}

// scheduleRebuild starts one background stats rebuild, coalescing
// concurrent triggers.
func (s *Service) scheduleRebuild() {
	if !s.rebuilding.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.rebuilding.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.RebuildStats(ctx); err != nil {
			slog.Error("background stats rebuild failed", "error", err)
		}
	}()
}

// RebuildStats recomputes all aggregates from the store. Called at boot and
// after a detected inconsistency; acceptable there, never on the read path.
func (s *Service) RebuildStats(ctx context.Context) error {
	metrics.StatsRebuilds.Inc()
	if err := s.agg.Rebuild(ctx, s.store); err != nil {
		return err
	}
	slog.Info("stats rebuilt from store")
	return nil
}

// StatsSnapshot returns the current global statistics.
func (s *Service) StatsSnapshot() stats.Snapshot {
	return s.agg.Snapshot()
}

// StatsHealth reports aggregator consistency for health checks.
func (s *Service) StatsHealth() (consistent bool, lastRebuild time.Time) {
	return s.agg.Consistent(), s.agg.LastRebuild()
}

// Ping reports store connectivity.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
