package database

import (
	"context"
	"time"
)

// UpsertPack inserts or updates a pack row within a batch, keyed by its path
// relative to the asset root, and returns the pack id.
func (d *Database) UpsertPack(b *Batch, name, path, version string) (int64, error) {
	query := `
	INSERT INTO packs (name, path, version, indexed_at)
	VALUES (?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(path) DO UPDATE SET
		name = excluded.name,
		version = excluded.version,
		indexed_at = strftime('%s', 'now')
	`
	var ver interface{}
	if version != "" {
		ver = version
	}
	if _, err := b.Tx.Exec(query, name, path, ver); err != nil {
		return 0, err
	}

	var id int64
	err := b.Tx.QueryRow("SELECT id FROM packs WHERE path = ?", path).Scan(&id)
	return id, err
}

// UpdatePackCounts refreshes the cached asset count on every pack. Runs as a
// post-pass after indexing.
func (d *Database) UpdatePackCounts(b *Batch) error {
	_, err := b.Tx.Exec(`
		UPDATE packs SET asset_count = (
			SELECT COUNT(*) FROM assets WHERE assets.pack_id = packs.id
		)
	`)
	return err
}

// SetPackPreview records the path of a generated pack preview image.
func (d *Database) SetPackPreview(b *Batch, packID int64, previewPath string) error {
	_, err := b.Tx.Exec("UPDATE packs SET preview_path = ? WHERE id = ?", previewPath, packID)
	return err
}

// ListPacks returns all packs ordered by name.
func (d *Database) ListPacks(ctx context.Context) ([]Pack, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_packs", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, path, COALESCE(version, ''), COALESCE(preview_path, ''), asset_count
		FROM packs
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packs []Pack
	for rows.Next() {
		var p Pack
		if err = rows.Scan(&p.ID, &p.Name, &p.Path, &p.Version, &p.PreviewPath, &p.AssetCount); err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	err = rows.Err()
	return packs, err
}
