package metacache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"scribe/internal/logging"
	"scribe/internal/services/ytdlp"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the table layout changes. Cached metadata is
// disposable, so a mismatch drops the tables and starts over instead of
// failing the daemon.
const schemaVersion = 1

// Cache stores yt-dlp probe results keyed by source URL so repeated task
// submissions for the same video skip the metadata round trip.
type Cache struct {
	db     *sql.DB
	path   string
	ttl    time.Duration
	logger *slog.Logger
}

// Open connects to the cache database at path, creating or healing it as
// needed. Entries older than ttl are treated as misses; a non-positive ttl
// keeps entries forever.
func Open(path string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("metacache: path required")
	}
	logger = logging.NewComponentLogger(logger, "metacache")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("metacache: create directory: %w", err)
	}

	db, err := openDatabase(path)
	if err != nil {
		// A corrupt cache file is not worth failing startup over; rebuild it.
		logger.Warn("probe cache unreadable, rebuilding", logging.Error(err), logging.String("path", path))
		_ = os.Remove(path)
		db, err = openDatabase(path)
		if err != nil {
			return nil, err
		}
	}

	return &Cache{db: db, path: path, ttl: ttl, logger: logger}, nil
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metacache: open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("metacache: apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	ctx := context.Background()

	var tableExists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("metacache: check schema_version table: %w", err)
	}

	if tableExists > 0 {
		var version int
		if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
			return fmt.Errorf("metacache: read schema version: %w", err)
		}
		if version == schemaVersion {
			return nil
		}
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS probe_results; DROP TABLE IF EXISTS schema_version"); err != nil {
			return fmt.Errorf("metacache: drop stale schema: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("metacache: begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("metacache: create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("metacache: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("metacache: commit schema: %w", err)
	}
	return nil
}

// Lookup returns the cached metadata for a source URL. The second return is
// false on a miss, including entries past their ttl.
func (c *Cache) Lookup(ctx context.Context, source string) (*ytdlp.Metadata, bool, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, false, nil
	}

	var meta ytdlp.Metadata
	var fetchedAt string
	err := c.db.QueryRowContext(ctx,
		`SELECT video_id, title, uploader, duration_seconds, webpage_url, extractor, fetched_at
		 FROM probe_results WHERE source = ?`, source,
	).Scan(&meta.ID, &meta.Title, &meta.Uploader, &meta.Duration, &meta.WebpageURL, &meta.Extractor, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("metacache: lookup: %w", err)
	}

	if c.ttl > 0 {
		stamp, err := time.Parse(time.RFC3339Nano, fetchedAt)
		if err != nil || time.Since(stamp) > c.ttl {
			return nil, false, nil
		}
	}
	return &meta, true, nil
}

// Store upserts the metadata for a source URL and refreshes its timestamp.
func (c *Cache) Store(ctx context.Context, source string, meta ytdlp.Metadata) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return errors.New("metacache: source required")
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO probe_results (source, video_id, title, uploader, duration_seconds, webpage_url, extractor, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source) DO UPDATE SET
		   video_id = excluded.video_id,
		   title = excluded.title,
		   uploader = excluded.uploader,
		   duration_seconds = excluded.duration_seconds,
		   webpage_url = excluded.webpage_url,
		   extractor = excluded.extractor,
		   fetched_at = excluded.fetched_at`,
		source, meta.ID, meta.Title, meta.Uploader, meta.Duration, meta.WebpageURL, meta.Extractor,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("metacache: store: %w", err)
	}
	return nil
}

// Prune deletes entries past the ttl and reports how many were removed.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-c.ttl).Format(time.RFC3339Nano)
	res, err := c.db.ExecContext(ctx, "DELETE FROM probe_results WHERE fetched_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("metacache: prune: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if removed > 0 {
		c.logger.Debug("pruned probe cache", logging.Int64("removed", removed))
	}
	return removed, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
