package database

import (
	"context"
	"time"
)

// AddTags links tags to an asset, creating tag rows as needed. The source
// records provenance: "path" for path-derived tags, "aseprite" for animation
// tag names, "manual" for user-applied tags. An asset never holds the same
// tag twice; the first source wins within one extraction.
func (d *Database) AddTags(b *Batch, assetID int64, names []string, source string) error {
	for _, name := range names {
		if _, err := b.Tx.Exec("INSERT OR IGNORE INTO tags (name) VALUES (?)", name); err != nil {
			return err
		}
		var tagID int64
		if err := b.Tx.QueryRow("SELECT id FROM tags WHERE name = ?", name).Scan(&tagID); err != nil {
			return err
		}
		_, err := b.Tx.Exec(
			"INSERT OR IGNORE INTO asset_tags (asset_id, tag_id, source) VALUES (?, ?, ?)",
			assetID, tagID, source,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListTags returns tags with asset counts, most used first.
func (d *Database) ListTags(ctx context.Context, limit int) ([]TagCount, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_tags", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `
		SELECT t.name, COUNT(at.asset_id) as count
		FROM tags t
		JOIN asset_tags at ON t.id = at.tag_id
		GROUP BY t.id
		ORDER BY count DESC, t.name
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []TagCount
	for rows.Next() {
		var tc TagCount
		if err = rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		tags = append(tags, tc)
	}
	err = rows.Err()
	return tags, err
}
