package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/g3lasio/deepsearchd/internal/store"
)

const entryColumns = `fingerprint, project_type, region, generated_list,
	confidence, usage_count, project_description, created_at, last_used_at`

func (d *DB) GetEntry(ctx context.Context, fingerprint string) (*store.CacheEntry, error) {
	row := d.q.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM cache_entries WHERE fingerprint = ?`, fingerprint)
	return scanEntry(row)
}

func (d *DB) CreateEntry(ctx context.Context, e *store.CacheEntry) error {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.LastUsedAt.IsZero() {
		e.LastUsedAt = e.CreatedAt
	}
	if e.UsageCount == 0 {
		e.UsageCount = 1
	}

	_, err := d.q.ExecContext(ctx, `
		INSERT INTO cache_entries
			(fingerprint, project_type, region, generated_list, confidence,
			 usage_count, project_description, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Fingerprint, e.ProjectType, e.Region, string(e.GeneratedList),
		e.Confidence, e.UsageCount, e.ProjectDescription,
		formatTime(e.CreatedAt), formatTime(e.LastUsedAt),
	)
	if err != nil {
		if mapped := mapConstraintError(err); errors.Is(mapped, store.ErrAlreadyExists) {
			return mapped
		}
		return mapDriverError(err)
	}
	return nil
}

// RecordHit increments the usage counter and bumps last_used_at in a single
// statement, then reads the updated row. Both run inside one transaction so
// concurrent hits serialize on the row and none are lost.
func (d *DB) RecordHit(ctx context.Context, fingerprint string) (*store.CacheEntry, error) {
	var out *store.CacheEntry
	err := d.withTx(ctx, func(q queryable) error {
		res, err := q.ExecContext(ctx, `
			UPDATE cache_entries
			SET usage_count = usage_count + 1, last_used_at = ?
			WHERE fingerprint = ?`,
			formatTime(time.Now().UTC()), fingerprint,
		)
		if err != nil {
			return mapDriverError(err)
		}
		if err := checkRowsAffected(res); err != nil {
			return err
		}
		row := q.QueryRowContext(ctx, `
			SELECT `+entryColumns+`
			FROM cache_entries WHERE fingerprint = ?`, fingerprint)
		out, err = scanEntry(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) UpdateConfidence(ctx context.Context, fingerprint string, confidence float64) error {
	res, err := d.q.ExecContext(ctx, `
		UPDATE cache_entries SET confidence = ? WHERE fingerprint = ?`,
		confidence, fingerprint,
	)
	if err != nil {
		return mapDriverError(err)
	}
	return checkRowsAffected(res)
}

func (d *DB) ScanEntries(ctx context.Context, fn func(*store.CacheEntry) error) error {
	rows, err := d.q.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM cache_entries ORDER BY created_at`)
	if err != nil {
		return mapDriverError(err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntryRow(rows)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (d *DB) DeleteStaleEntries(ctx context.Context, before time.Time, maxUsage int64) ([]store.CacheEntry, error) {
	var deleted []store.CacheEntry
	err := d.withTx(ctx, func(q queryable) error {
		rows, err := q.QueryContext(ctx, `
			SELECT `+entryColumns+`
			FROM cache_entries
			WHERE last_used_at < ? AND usage_count <= ?`,
			formatTime(before), maxUsage,
		)
		if err != nil {
			return mapDriverError(err)
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEntryRow(rows)
			if err != nil {
				return err
			}
			deleted = append(deleted, *e)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(deleted) == 0 {
			return nil
		}

		_, err = q.ExecContext(ctx, `
			DELETE FROM cache_entries
			WHERE last_used_at < ? AND usage_count <= ?`,
			formatTime(before), maxUsage,
		)
		if err != nil {
			return fmt.Errorf("delete stale: %w", mapDriverError(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func scanEntry(row *sql.Row) (*store.CacheEntry, error) {
	e, err := scanEntryRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, mapDriverError(err)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntryRow(row rowScanner) (*store.CacheEntry, error) {
	var e store.CacheEntry
	var generatedList, createdAt, lastUsedAt string
	err := row.Scan(&e.Fingerprint, &e.ProjectType, &e.Region, &generatedList,
		&e.Confidence, &e.UsageCount, &e.ProjectDescription,
		&createdAt, &lastUsedAt)
	if err != nil {
		return nil, err
	}
	e.GeneratedList = json.RawMessage(generatedList)
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.LastUsedAt, err = parseTime(lastUsedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
