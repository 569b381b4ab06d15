package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// lastRunKey holds the JSON-encoded RunSummary of the latest run.
const lastRunKey = "last_index_run"

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value sql.NullString
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// SchemaVersion returns the stored schema version, or "" for a database
// that has never been opened by this program.
func (d *Database) SchemaVersion(ctx context.Context) (string, error) {
	v, err := d.GetMetadata(ctx, "schema_version")
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// GetLastRun returns the summary of the most recent run. ok is false if no
// run has completed yet.
func (d *Database) GetLastRun(ctx context.Context) (summary RunSummary, ok bool, err error) {
	value, err := d.GetMetadata(ctx, lastRunKey)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, false, nil
	}
	if err != nil {
		return RunSummary{}, false, err
	}
	if value == "" {
		return RunSummary{}, false, nil
	}

	if err := json.Unmarshal([]byte(value), &summary); err != nil {
		return RunSummary{}, false, fmt.Errorf("failed to decode %s: %w", lastRunKey, err)
	}
	return summary, true, nil
}

// SetLastRun stores the summary of a completed run.
func (d *Database) SetLastRun(ctx context.Context, summary RunSummary) error {
	b, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", lastRunKey, err)
	}
	return d.SetMetadata(ctx, lastRunKey, string(b))
}
