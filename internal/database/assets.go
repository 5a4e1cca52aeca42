package database

import (
	"context"
	"database/sql"
	"time"

	"asset-index/internal/colors"
	"asset-index/internal/phash"
	"asset-index/internal/sprite"
)

// UpsertAsset inserts or updates an asset row within a batch, keyed by path,
// and returns the asset id. The update path keeps the existing id so tag,
// color, and relation edges referencing it stay meaningful; stale child rows
// are cleared so the caller can rewrite them from the fresh extraction.
func (d *Database) UpsertAsset(b *Batch, a *Asset) (int64, error) {
	var px, py, pw, ph interface{}
	if a.PreviewBounds != nil {
		px, py = a.PreviewBounds.X, a.PreviewBounds.Y
		pw, ph = a.PreviewBounds.Width, a.PreviewBounds.Height
	}

	query := `
	INSERT INTO assets (pack_id, path, filename, filetype, file_hash, file_size,
		width, height, preview_x, preview_y, preview_width, preview_height,
		frame_count, duration_ms, category, indexed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(path) DO UPDATE SET
		pack_id = excluded.pack_id,
		filename = excluded.filename,
		filetype = excluded.filetype,
		file_hash = excluded.file_hash,
		file_size = excluded.file_size,
		width = excluded.width,
		height = excluded.height,
		preview_x = excluded.preview_x,
		preview_y = excluded.preview_y,
		preview_width = excluded.preview_width,
		preview_height = excluded.preview_height,
		frame_count = excluded.frame_count,
		duration_ms = excluded.duration_ms,
		category = excluded.category,
		indexed_at = strftime('%s', 'now')
	`

	var packID interface{}
	if a.PackID != 0 {
		packID = a.PackID
	}
	var frameCount, durationMS interface{}
	if a.FrameCount != 0 {
		frameCount = a.FrameCount
	}
	if a.DurationMS != 0 {
		durationMS = a.DurationMS
	}

	_, err := b.Tx.Exec(query,
		packID, a.Path, a.Filename, a.Filetype, a.FileHash, a.FileSize,
		nullableInt(a.Width), nullableInt(a.Height), px, py, pw, ph,
		frameCount, durationMS, a.Category,
	)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := b.Tx.QueryRow("SELECT id FROM assets WHERE path = ?", a.Path).Scan(&id); err != nil {
		return 0, err
	}

	// Re-extraction replaces all derived rows.
	for _, stmt := range []string{
		"DELETE FROM asset_tags WHERE asset_id = ?",
		"DELETE FROM asset_colors WHERE asset_id = ?",
		"DELETE FROM asset_phash WHERE asset_id = ?",
	} {
		if _, err := b.Tx.Exec(stmt, id); err != nil {
			return 0, err
		}
	}

	a.ID = id
	return id, nil
}

// SetColors stores the dominant colors of an asset.
func (d *Database) SetColors(b *Batch, assetID int64, cs []colors.Color) error {
	for _, c := range cs {
		_, err := b.Tx.Exec(
			"INSERT OR REPLACE INTO asset_colors (asset_id, color_hex, percentage) VALUES (?, ?, ?)",
			assetID, c.Hex, c.Percentage,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SetPHash stores the perceptual hash of an asset.
func (d *Database) SetPHash(b *Batch, assetID int64, h phash.Hash) error {
	_, err := b.Tx.Exec(
		"INSERT OR REPLACE INTO asset_phash (asset_id, phash) VALUES (?, ?)",
		assetID, []byte(h),
	)
	return err
}

// AssetHashes returns the stored content hash for every asset path. The
// indexer uses this for the incremental skip check.
func (d *Database) AssetHashes(ctx context.Context) (map[string]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("asset_hashes", start, err) }()

	rows, err := d.db.QueryContext(ctx, "SELECT path, file_hash FROM assets")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err = rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		hashes[path] = hash
	}
	err = rows.Err()
	return hashes, err
}

// GetAssetByPath retrieves a single asset by its path relative to the asset
// root. Returns sql.ErrNoRows when absent.
func (d *Database) GetAssetByPath(ctx context.Context, path string) (*Asset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_asset_by_path", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(pack_id, 0), path, filename, filetype, file_hash,
			COALESCE(file_size, 0), COALESCE(width, 0), COALESCE(height, 0),
			preview_x, preview_y, preview_width, preview_height,
			COALESCE(frame_count, 0), COALESCE(duration_ms, 0), COALESCE(category, '')
		FROM assets WHERE path = ?
	`, path)

	a, err := scanAsset(row)
	return a, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var a Asset
	var px, py, pw, ph sql.NullInt64
	err := row.Scan(
		&a.ID, &a.PackID, &a.Path, &a.Filename, &a.Filetype, &a.FileHash,
		&a.FileSize, &a.Width, &a.Height,
		&px, &py, &pw, &ph,
		&a.FrameCount, &a.DurationMS, &a.Category,
	)
	if err != nil {
		return nil, err
	}
	if px.Valid && py.Valid && pw.Valid && ph.Valid {
		a.PreviewBounds = &sprite.Rect{
			X:      int(px.Int64),
			Y:      int(py.Int64),
			Width:  int(pw.Int64),
			Height: int(ph.Int64),
		}
	}
	return &a, nil
}

// ListAssetPaths returns every indexed asset path.
func (d *Database) ListAssetPaths(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_asset_paths", start, err) }()

	rows, err := d.db.QueryContext(ctx, "SELECT path FROM assets ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	err = rows.Err()
	return paths, err
}

// DeleteAsset removes an asset and its derived rows. Preview overrides are
// left alone: they are keyed by path and owned by the serving layer.
func (d *Database) DeleteAsset(b *Batch, path string) error {
	var id int64
	err := b.Tx.QueryRow("SELECT id FROM assets WHERE path = ?", path).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	for _, stmt := range []string{
		"DELETE FROM asset_tags WHERE asset_id = ?",
		"DELETE FROM asset_colors WHERE asset_id = ?",
		"DELETE FROM asset_phash WHERE asset_id = ?",
		"DELETE FROM assets WHERE id = ?",
	} {
		if _, err := b.Tx.Exec(stmt, id); err != nil {
			return err
		}
	}
	_, err = b.Tx.Exec("DELETE FROM asset_relations WHERE asset_id = ? OR related_id = ?", id, id)
	return err
}

func nullableInt(v int) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
