package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"asset-index/internal/logging"
	"asset-index/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database manages the asset catalog store.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Batch is an open write transaction plus its start time, used for
// transaction duration metrics.
type Batch struct {
	Tx    *sql.Tx
	start time.Time
}

// New opens (or creates) the catalog database at dbPath.
// dbPath should be the full path to the database FILE (e.g. "assets.db");
// the parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Debug("Database path: %s", dbPath)

	// Use WAL mode and other optimizations
	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Writes funnel through one batch at a time; readers can still fan out.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS packs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		version TEXT,
		preview_path TEXT,
		asset_count INTEGER NOT NULL DEFAULT 0,
		indexed_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pack_id INTEGER REFERENCES packs(id),
		path TEXT NOT NULL UNIQUE,
		filename TEXT NOT NULL,
		filetype TEXT NOT NULL,
		file_hash TEXT NOT NULL,
		file_size INTEGER,
		width INTEGER,
		height INTEGER,
		preview_x INTEGER,
		preview_y INTEGER,
		preview_width INTEGER,
		preview_height INTEGER,
		frame_count INTEGER,
		duration_ms INTEGER,
		category TEXT,
		indexed_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_assets_filename ON assets(filename);
	CREATE INDEX IF NOT EXISTS idx_assets_filetype ON assets(filetype);
	CREATE INDEX IF NOT EXISTS idx_assets_pack_id ON assets(pack_id);
	CREATE INDEX IF NOT EXISTS idx_assets_file_hash ON assets(file_hash);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS asset_tags (
		asset_id INTEGER NOT NULL REFERENCES assets(id),
		tag_id INTEGER NOT NULL REFERENCES tags(id),
		source TEXT NOT NULL,
		PRIMARY KEY (asset_id, tag_id)
	);

	CREATE INDEX IF NOT EXISTS idx_asset_tags_tag ON asset_tags(tag_id);

	CREATE TABLE IF NOT EXISTS asset_colors (
		asset_id INTEGER NOT NULL REFERENCES assets(id),
		color_hex TEXT NOT NULL,
		percentage REAL NOT NULL,
		PRIMARY KEY (asset_id, color_hex)
	);

	CREATE INDEX IF NOT EXISTS idx_asset_colors_hex ON asset_colors(color_hex);

	CREATE TABLE IF NOT EXISTS asset_phash (
		asset_id INTEGER PRIMARY KEY REFERENCES assets(id),
		phash BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS asset_relations (
		asset_id INTEGER NOT NULL REFERENCES assets(id),
		related_id INTEGER NOT NULL REFERENCES assets(id),
		relation_type TEXT,
		PRIMARY KEY (asset_id, related_id)
	);

	-- Owned by the serving layer; the indexer reads but never writes it.
	CREATE TABLE IF NOT EXISTS asset_preview_overrides (
		path TEXT PRIMARY KEY,
		use_full_image INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// BeginBatch starts a transaction for batch writes. Only one batch may be
// open at a time; the caller is responsible for calling EndBatch when done.
func (d *Database) BeginBatch() (*Batch, error) {
	d.mu.Lock()
	start := time.Now()

	// Use background context - transaction lifetime is managed by EndBatch,
	// not a timeout.
	tx, err := d.db.BeginTx(context.Background(), nil)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}

	return &Batch{Tx: tx, start: start}, nil
}

// EndBatch commits the batch, or rolls it back when err is non-nil.
func (d *Database) EndBatch(b *Batch, err error) error {
	defer d.mu.Unlock()
	duration := time.Since(b.start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := b.Tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return b.Tx.Commit()
}

// Vacuum optimizes the database.
func (d *Database) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
