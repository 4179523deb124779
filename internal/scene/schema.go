package scene

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 1

func initSchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if version == schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS images (
            name TEXT PRIMARY KEY,
            source TEXT NOT NULL DEFAULT '',
            width INTEGER NOT NULL DEFAULT 0,
            height INTEGER NOT NULL DEFAULT 0,
            frame INTEGER NOT NULL DEFAULT 0,
            flags TEXT NOT NULL DEFAULT '',
            sheet INTEGER NOT NULL DEFAULT 0,
            pixels BLOB
        )`,
		`CREATE INDEX IF NOT EXISTS idx_images_source ON images(source)`,
		`CREATE TABLE IF NOT EXISTS timelines (
            sprite TEXT PRIMARY KEY,
            start INTEGER NOT NULL,
            current_frame INTEGER NOT NULL,
            grid_columns INTEGER NOT NULL DEFAULT 0,
            grid_rows INTEGER NOT NULL DEFAULT 0,
            frames BLOB NOT NULL,
            tags BLOB NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS meta (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS layer_stacks (
            name TEXT PRIMARY KEY,
            width INTEGER NOT NULL,
            height INTEGER NOT NULL,
            body BLOB NOT NULL
        )`,
	}
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return tx.Commit()
}
