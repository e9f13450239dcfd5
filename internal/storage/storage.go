package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"glyphsim/internal/fileutil"
	"glyphsim/internal/models"
)

// Storage persists glyph hashes and run history in SQLite
type Storage struct {
	db     *sql.DB
	dbPath string
}

// NewStorage creates a new Storage
func NewStorage(dbPath string) (*Storage, error) {
	if err := fileutil.EnsureParentDir(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Serialize writers; concurrent warm-up workers share this handle.
	db.SetMaxOpenConns(1)

	s := &Storage{db: db, dbPath: dbPath}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Current schema version
const schemaVersion = 2

// migrations defines all schema migrations
// Each migration should be idempotent (safe to run multiple times)
var migrations = []struct {
	version     int
	description string
	up          string
}{
	{
		version:     1,
		description: "Initial schema",
		up:          "", // Handled by base schema creation
	},
	{
		version:     2,
		description: "Add computations and duration to run history",
		up: `
			ALTER TABLE runs ADD COLUMN computations INTEGER DEFAULT 0;
			ALTER TABLE runs ADD COLUMN duration_ns INTEGER DEFAULT 0;
		`,
	},
}

// init creates the database schema
func (s *Storage) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS glyphs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id TEXT NOT NULL,
		path TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		hash INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		format TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		mod_time_ns INTEGER NOT NULL,
		has_exif INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(path, algorithm)
	);

	CREATE INDEX IF NOT EXISTS idx_glyphs_item_id ON glyphs(item_id);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		output TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		started_at TEXT NOT NULL,
		total_items INTEGER NOT NULL,
		skipped_items INTEGER NOT NULL,
		largest_difference INTEGER NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err := s.migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// migrate runs pending schema migrations
func (s *Storage) migrate() error {
	currentVersion := s.getSchemaVersion()

	for _, m := range migrations {
		if m.version <= currentVersion || m.up == "" {
			continue
		}

		// Check if migration is needed (column might already exist)
		if m.version == 2 && s.columnExists("runs", "computations") {
			s.setSchemaVersion(m.version)
			continue
		}

		if _, err := s.db.Exec(m.up); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.description, err)
		}

		s.setSchemaVersion(m.version)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (s *Storage) getSchemaVersion() int {
	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0
	}
	return version
}

// setSchemaVersion records a migration as applied
func (s *Storage) setSchemaVersion(version int) {
	s.db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, version)
}

// columnExists checks if a column exists in a table
func (s *Storage) columnExists(table, column string) bool {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?
	`, table, column).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveGlyph saves or replaces the hash of one glyph image
func (s *Storage) SaveGlyph(ctx context.Context, info *models.GlyphInfo) error {
	hasExifInt := 0
	if info.HasExif {
		hasExifInt = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO glyphs (item_id, path, algorithm, hash, width, height, format, file_size, mod_time_ns, has_exif)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(info.ID),
		info.Path,
		info.Algorithm,
		int64(info.Hash), // SQLite integers are signed
		info.Width,
		info.Height,
		info.Format,
		info.FileSize,
		info.ModTime.UnixNano(),
		hasExifInt,
	)
	if err != nil {
		return fmt.Errorf("failed to save glyph %s: %w", info.Path, err)
	}
	return nil
}

// LookupGlyph returns the stored hash for path computed with algorithm
func (s *Storage) LookupGlyph(ctx context.Context, path, algorithm string) (*models.GlyphInfo, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT item_id, path, algorithm, hash, width, height, format, file_size, mod_time_ns, has_exif
		FROM glyphs
		WHERE path = ? AND algorithm = ?
	`, path, algorithm)

	info := &models.GlyphInfo{}
	var itemID string
	var hashInt, modTimeNs int64
	var hasExifInt int
	err := row.Scan(
		&itemID,
		&info.Path,
		&info.Algorithm,
		&hashInt,
		&info.Width,
		&info.Height,
		&info.Format,
		&info.FileSize,
		&modTimeNs,
		&hasExifInt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query glyph %s: %w", path, err)
	}

	info.ID = models.ItemID(itemID)
	info.Hash = uint64(hashInt)
	info.ModTime = time.Unix(0, modTimeNs)
	info.HasExif = hasExifInt == 1
	return info, true, nil
}

// GlyphCount returns the number of stored glyph hashes
func (s *Storage) GlyphCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM glyphs").Scan(&count)
	return count, err
}

// RecordRun records a comparison run in history
func (s *Storage) RecordRun(rec *models.RunRecord) error {
	res, err := s.db.Exec(`
		INSERT INTO runs (source, output, algorithm, started_at, total_items, skipped_items, largest_difference, computations, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Source,
		rec.Output,
		rec.Algorithm,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.TotalItems,
		rec.SkippedItems,
		rec.LargestDifference,
		rec.Computations,
		int64(rec.Duration),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit of 0 returns all runs.
func (s *Storage) ListRuns(limit int) ([]*models.RunRecord, error) {
	query := `
		SELECT id, source, output, algorithm, started_at, total_items, skipped_items, largest_difference, computations, duration_ns
		FROM runs
		ORDER BY id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.RunRecord
	for rows.Next() {
		rec := &models.RunRecord{}
		var startedAt string
		var durationNs int64
		err := rows.Scan(
			&rec.ID,
			&rec.Source,
			&rec.Output,
			&rec.Algorithm,
			&startedAt,
			&rec.TotalItems,
			&rec.SkippedItems,
			&rec.LargestDifference,
			&rec.Computations,
			&durationNs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		rec.Duration = time.Duration(durationNs)
		runs = append(runs, rec)
	}

	return runs, rows.Err()
}
