package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS passages (
		id         TEXT PRIMARY KEY,
		content    TEXT NOT NULL,
		source     TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS passages_fts USING fts5(
		content,
		content=passages,
		content_rowid=rowid,
		tokenize='porter unicode61'
	)`,

	`CREATE TRIGGER IF NOT EXISTS passages_ai AFTER INSERT ON passages BEGIN
		INSERT INTO passages_fts(rowid, content) VALUES (new.rowid, new.content);
	END`,

	`CREATE TRIGGER IF NOT EXISTS passages_ad AFTER DELETE ON passages BEGIN
		INSERT INTO passages_fts(passages_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
	END`,

	`CREATE TRIGGER IF NOT EXISTS passages_au AFTER UPDATE ON passages BEGIN
		INSERT INTO passages_fts(passages_fts, rowid, content) VALUES ('delete', old.rowid, old.content);
		INSERT INTO passages_fts(rowid, content) VALUES (new.rowid, new.content);
	END`,
}

// migrate brings the schema to schemaVersion. Every statement is
// idempotent.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite retriever: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite retriever: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite retriever: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite retriever: record schema version: %w", err)
	}
	return nil
}
