package main

import (
	"context"
	"fmt"

	"github.com/g3lasio/deepsearchd/internal/store"
	"github.com/g3lasio/deepsearchd/internal/store/sqlite"
)

func cmdStatus() error {
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

	var entries, reuses int64
	err = db.ScanEntries(ctx, func(e *store.CacheEntry) error {
		entries++
		reuses += e.UsageCount - 1
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan entries: %w", err)
	}

	fmt.Printf("DeepSearch Cache Status (db: %s)\n", cfg.DBDSN)
	fmt.Printf("  Cached lists:      %d\n", entries)
	fmt.Printf("  Recorded reuses:   %d\n", reuses)
	fmt.Printf("  Saved generations: %d\n", reuses)

	return nil
}
