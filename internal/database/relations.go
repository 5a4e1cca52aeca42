package database

// DetectRelations links assets to their derived variants by path convention:
// a "_Shadows" directory holds shadow sheets matching the base filename, a
// "_GIFs" directory holds animated previews matching the PNG stem. Runs as a
// post-pass after indexing so both sides of each edge exist.
func (d *Database) DetectRelations(b *Batch) error {
	_, err := b.Tx.Exec(`
		INSERT OR IGNORE INTO asset_relations (asset_id, related_id, relation_type)
		SELECT a1.id, a2.id, 'shadow'
		FROM assets a1
		JOIN assets a2 ON a2.path LIKE '%_Shadows/%' || a1.filename
		WHERE a1.path NOT LIKE '%_Shadows/%'
	`)
	if err != nil {
		return err
	}

	_, err = b.Tx.Exec(`
		INSERT OR IGNORE INTO asset_relations (asset_id, related_id, relation_type)
		SELECT a1.id, a2.id, 'gif_preview'
		FROM assets a1
		JOIN assets a2 ON a2.path LIKE '%_GIFs/%'
			AND REPLACE(a2.filename, '.gif', '') = REPLACE(a1.filename, '.png', '')
		WHERE a1.filetype = 'png' AND a2.filetype = 'gif'
	`)
	return err
}
