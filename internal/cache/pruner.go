package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/g3lasio/deepsearchd/internal/metrics"
	"github.com/g3lasio/deepsearchd/internal/stats"
)

// RetentionPolicy describes which entries the pruner may remove: unused for
// MaxAge and never reused more than MaxUsage times. Popular entries are
// never pruned regardless of age.
type RetentionPolicy struct {
	MaxAge   time.Duration
	MaxUsage int64
	Interval time.Duration
}

// RunPruner applies the retention policy on a ticker until ctx is canceled.
// Intended to run under the server's errgroup.
func (s *Service) RunPruner(ctx context.Context, policy RetentionPolicy) error {
	if policy.Interval <= 0 || policy.MaxAge <= 0 {
		return fmt.Errorf("invalid retention policy: %+v", policy)
	}

	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.PruneOnce(ctx, policy); err != nil {
				slog.Error("retention prune failed", "error", err)
			}
		}
	}
}

// PruneOnce removes stale entries and decrements every aggregate they
// contributed to, so the stats never go stale relative to the store.
func (s *Service) PruneOnce(ctx context.Context, policy RetentionPolicy) (int, error) {
	cutoff := time.Now().UTC().Add(-policy.MaxAge)
	deleted, err := s.store.DeleteStaleEntries(ctx, cutoff, policy.MaxUsage)
	if err != nil {
		return 0, fmt.Errorf("delete stale entries: %w", err)
	}

	for i := range deleted {
		e := &deleted[i]
		s.applyEvent(stats.Event{
			Type:        stats.EventPrune,
			Fingerprint: e.Fingerprint,
			ProjectType: e.ProjectType,
			Region:      e.Region,
		})
	}
	if len(deleted) > 0 {
		metrics.PrunedEntries.Add(float64(len(deleted)))
		slog.Info("pruned stale cache entries",
			"count", len(deleted), "cutoff", cutoff, "max_usage", policy.MaxUsage)
	}
	return len(deleted), nil
}
