package database

import (
	"context"
	"database/sql"
	"time"
)

// Preview overrides are owned by the serving layer: the indexer reads them
// when rendering previews but never writes or deletes rows here, so a manual
// "show the full sheet" decision survives any number of re-index runs.

// GetPreviewOverride returns the override for an asset path, or nil when the
// detected sprite bounds should be used.
func (d *Database) GetPreviewOverride(ctx context.Context, path string) (*PreviewOverride, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_preview_override", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var o PreviewOverride
	var useFullImage int
	var createdAt int64
	err = d.db.QueryRowContext(ctx, `
		SELECT path, use_full_image, created_at
		FROM asset_preview_overrides WHERE path = ?
	`, path).Scan(&o.Path, &useFullImage, &createdAt)
	if err == sql.ErrNoRows {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.UseFullImage = useFullImage != 0
	o.CreatedAt = time.Unix(createdAt, 0)
	return &o, nil
}

// SetPreviewOverride records that an asset's preview should use the full
// image instead of detected sprite bounds (or the reverse). Called from the
// serving layer only.
func (d *Database) SetPreviewOverride(ctx context.Context, path string, useFullImage bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_preview_override", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	full := 0
	if useFullImage {
		full = 1
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO asset_preview_overrides (path, use_full_image, created_at)
		VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(path) DO UPDATE SET use_full_image = excluded.use_full_image
	`, path, full)
	return err
}

// DeletePreviewOverride removes an override, restoring detected bounds.
func (d *Database) DeletePreviewOverride(ctx context.Context, path string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_preview_override", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM asset_preview_overrides WHERE path = ?", path)
	return err
}

// ListPreviewOverrides returns all overrides ordered by path.
func (d *Database) ListPreviewOverrides(ctx context.Context) ([]PreviewOverride, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_preview_overrides", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT path, use_full_image, created_at
		FROM asset_preview_overrides ORDER BY path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var overrides []PreviewOverride
	for rows.Next() {
		var o PreviewOverride
		var useFullImage int
		var createdAt int64
		if err = rows.Scan(&o.Path, &useFullImage, &createdAt); err != nil {
			return nil, err
		}
		o.UseFullImage = useFullImage != 0
		o.CreatedAt = time.Unix(createdAt, 0)
		overrides = append(overrides, o)
	}
	err = rows.Err()
	return overrides, err
}
