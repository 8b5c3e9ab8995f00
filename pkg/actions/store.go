package actions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Store loads stored action sets for a run. Read-only from the core's
// point of view: compilation never writes records back.
type Store interface {
	LoadForRun(ctx context.Context, scope OwnerScope, ownerID string) ([]ActionSet, error)
}

// SQLiteStore persists action sets in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the action-set database at path.
// Use ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open action store: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS action_sets (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			scope TEXT NOT NULL,
			metadata TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_action_sets_owner ON action_sets(owner_id, scope);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate action store: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// LoadForRun returns every action set owned by the given scope and owner,
// oldest first so compiled domain order is stable across runs.
func (s *SQLiteStore) LoadForRun(ctx context.Context, scope OwnerScope, ownerID string) ([]ActionSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, scope, metadata FROM action_sets
		 WHERE owner_id = ? AND scope = ? ORDER BY created_at, id`,
		ownerID, string(scope))
	if err != nil {
		return nil, fmt.Errorf("load action sets: %w", err)
	}
	defer rows.Close()

	var sets []ActionSet
	for rows.Next() {
		var set ActionSet
		var scopeStr, metadataJSON string
		if err := rows.Scan(&set.ID, &set.OwnerID, &scopeStr, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scan action set: %w", err)
		}
		set.Scope = OwnerScope(scopeStr)
		if err := json.Unmarshal([]byte(metadataJSON), &set.Metadata); err != nil {
			// A corrupt record is skipped, not fatal: the rest of the
			// owner's action sets must still compile.
			log.Warn().Err(err).Str("action_set", set.ID).Msg("Skipping action set with corrupt metadata")
			continue
		}
		sets = append(sets, set)
	}

	return sets, rows.Err()
}

// Save inserts or replaces an action set record. Used by management
// surfaces, not by the run path.
func (s *SQLiteStore) Save(ctx context.Context, set ActionSet) error {
	metadata, err := json.Marshal(set.Metadata)
	if err != nil {
		return fmt.Errorf("marshal action metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO action_sets (id, owner_id, scope, metadata) VALUES (?, ?, ?, ?)`,
		set.ID, set.OwnerID, string(set.Scope), string(metadata))
	if err != nil {
		return fmt.Errorf("save action set: %w", err)
	}
	return nil
}

// Delete removes an action set by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM action_sets WHERE id = ?`, id)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
