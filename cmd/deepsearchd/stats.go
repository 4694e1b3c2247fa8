package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/g3lasio/deepsearchd/internal/stats"
	"github.com/g3lasio/deepsearchd/internal/store/sqlite"
)

// cmdStats rebuilds the aggregates straight from the store and prints the
// snapshot, without going through a running server.
func cmdStats() error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := sqlite.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	agg := stats.New(0)
	if err := agg.Rebuild(ctx, db); err != nil {
		return fmt.Errorf("rebuild stats: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(agg.Snapshot())
}
