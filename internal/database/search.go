package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"asset-index/internal/colors"
	"asset-index/internal/metrics"
	"asset-index/internal/phash"
)

// colorNames maps human color names to the palette hexes treated as matches.
var colorNames = map[string][]string{
	"red":    {"#ff0000", "#cc0000", "#990000", "#ff3333", "#cc3333"},
	"green":  {"#00ff00", "#00cc00", "#009900", "#33ff33", "#33cc33", "#336633", "#669966"},
	"blue":   {"#0000ff", "#0000cc", "#000099", "#3333ff", "#3333cc", "#333366"},
	"yellow": {"#ffff00", "#cccc00", "#999900", "#ffff33"},
	"orange": {"#ff8800", "#ff6600", "#cc6600", "#ff9933"},
	"purple": {"#ff00ff", "#cc00cc", "#990099", "#9900ff", "#6600cc"},
	"brown":  {"#8b4513", "#a0522d", "#cd853f", "#d2691e", "#8b5a2b"},
	"black":  {"#000000", "#111111", "#222222", "#333333"},
	"white":  {"#ffffff", "#eeeeee", "#dddddd", "#cccccc"},
	"gray":   {"#888888", "#999999", "#aaaaaa", "#777777", "#666666"},
	"grey":   {"#888888", "#999999", "#aaaaaa", "#777777", "#666666"},
}

// Minimum pixel share for a color filter to consider a color "dominant".
const colorFilterMinShare = 0.1

// SearchFilters narrows a catalog search. Zero values mean "no filter".
type SearchFilters struct {
	Query    string   // substring match on filename or path
	Tags     []string // all must match
	Color    string   // color name or hex value
	Pack     string   // substring match on pack name
	Filetype string   // exact match, extension without dot
	Limit    int
}

// Search returns assets matching all given filters, joined with their pack
// name and tags, ordered by filename.
func (d *Database) Search(ctx context.Context, f SearchFilters) ([]SearchResult, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("search", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	conditions := []string{"1=1"}
	var params []interface{}

	if f.Query != "" {
		conditions = append(conditions, "(a.filename LIKE ? OR a.path LIKE ?)")
		like := "%" + f.Query + "%"
		params = append(params, like, like)
	}
	if f.Pack != "" {
		conditions = append(conditions, "p.name LIKE ?")
		params = append(params, "%"+f.Pack+"%")
	}
	if f.Filetype != "" {
		conditions = append(conditions, "a.filetype = ?")
		params = append(params, strings.TrimPrefix(strings.ToLower(f.Filetype), "."))
	}
	for _, tag := range f.Tags {
		conditions = append(conditions, `
			a.id IN (
				SELECT at.asset_id FROM asset_tags at
				JOIN tags t ON at.tag_id = t.id
				WHERE t.name = ?
			)`)
		params = append(params, strings.ToLower(tag))
	}
	if f.Color != "" {
		hexes := resolveColor(f.Color)
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(hexes)), ",")
		conditions = append(conditions, fmt.Sprintf(`
			a.id IN (
				SELECT asset_id FROM asset_colors
				WHERE color_hex IN (%s) AND percentage >= %f
			)`, placeholders, colorFilterMinShare))
		for _, h := range hexes {
			params = append(params, h)
		}
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	params = append(params, limit)

	query := fmt.Sprintf(`
		SELECT a.id, COALESCE(a.pack_id, 0), a.path, a.filename, a.filetype, a.file_hash,
			COALESCE(a.file_size, 0), COALESCE(a.width, 0), COALESCE(a.height, 0),
			COALESCE(a.frame_count, 0), COALESCE(a.category, ''),
			COALESCE(p.name, '') as pack_name,
			COALESCE(GROUP_CONCAT(DISTINCT t.name), '') as tags
		FROM assets a
		LEFT JOIN packs p ON a.pack_id = p.id
		LEFT JOIN asset_tags at ON a.id = at.asset_id
		LEFT JOIN tags t ON at.tag_id = t.id
		WHERE %s
		GROUP BY a.id
		ORDER BY a.filename
		LIMIT ?
	`, strings.Join(conditions, " AND "))

	rows, err := d.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var tagList string
		if err = rows.Scan(
			&r.ID, &r.PackID, &r.Path, &r.Filename, &r.Filetype, &r.FileHash,
			&r.FileSize, &r.Width, &r.Height, &r.FrameCount, &r.Category,
			&r.PackName, &tagList,
		); err != nil {
			return nil, err
		}
		if tagList != "" {
			r.Tags = strings.Split(tagList, ",")
			sort.Strings(r.Tags)
		}
		results = append(results, r)
	}
	err = rows.Err()
	return results, err
}

// resolveColor turns a color name or hex string into the hex values to match.
func resolveColor(color string) []string {
	lower := strings.ToLower(color)
	if hexes, ok := colorNames[lower]; ok {
		return hexes
	}
	if !strings.HasPrefix(lower, "#") {
		lower = "#" + lower
	}
	return []string{lower}
}

// PHashByAssetID returns the stored fingerprint for an asset, or
// sql.ErrNoRows when the asset has none.
func (d *Database) PHashByAssetID(ctx context.Context, assetID int64) (phash.Hash, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("phash_by_id", start, err) }()

	var blob []byte
	err = d.db.QueryRowContext(ctx, "SELECT phash FROM asset_phash WHERE asset_id = ?", assetID).Scan(&blob)
	return phash.Hash(blob), err
}

// PHashByPath returns the fingerprint of the first asset whose path contains
// the given fragment, together with the asset id.
func (d *Database) PHashByPath(ctx context.Context, pathFragment string) (int64, phash.Hash, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("phash_by_path", start, err) }()

	var id int64
	var blob []byte
	err = d.db.QueryRowContext(ctx, `
		SELECT ap.asset_id, ap.phash
		FROM asset_phash ap
		JOIN assets a ON ap.asset_id = a.id
		WHERE a.path LIKE ?
		ORDER BY a.id
		LIMIT 1
	`, "%"+pathFragment+"%").Scan(&id, &blob)
	return id, phash.Hash(blob), err
}

// FindSimilar scans every stored fingerprint and returns assets within
// maxDistance of the reference hash, nearest first, ties broken by asset id.
// excludeID removes the reference asset itself when searching by id; pass 0
// when the reference is an external image. maxDistance of 0 matches only
// bit-identical fingerprints.
func (d *Database) FindSimilar(ctx context.Context, ref phash.Hash, maxDistance, limit int, excludeID int64) ([]SimilarAsset, error) {
	start := time.Now()
	var err error
	defer func() {
		recordQuery("find_similar", start, err)
		metrics.SimilarityScansTotal.Inc()
		metrics.SimilarityScanDuration.Observe(time.Since(start).Seconds())
	}()

	rows, err := d.db.QueryContext(ctx, `
		SELECT ap.asset_id, ap.phash, a.path, a.filename, COALESCE(p.name, '')
		FROM asset_phash ap
		JOIN assets a ON ap.asset_id = a.id
		LEFT JOIN packs p ON a.pack_id = p.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SimilarAsset
	for rows.Next() {
		var s SimilarAsset
		var blob []byte
		if err = rows.Scan(&s.AssetID, &blob, &s.Path, &s.Filename, &s.PackName); err != nil {
			return nil, err
		}
		if s.AssetID == excludeID {
			continue
		}
		dist, derr := phash.Distance(ref, phash.Hash(blob))
		if derr != nil {
			continue // malformed blob, skip
		}
		if dist > maxDistance {
			continue
		}
		s.Distance = dist
		results = append(results, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].AssetID < results[j].AssetID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetAssetDetail returns the full view of one asset: metadata, tags with
// provenance, dominant colors, and relations.
func (d *Database) GetAssetDetail(ctx context.Context, assetID int64) (*AssetDetail, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("asset_detail", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(pack_id, 0), path, filename, filetype, file_hash,
			COALESCE(file_size, 0), COALESCE(width, 0), COALESCE(height, 0),
			preview_x, preview_y, preview_width, preview_height,
			COALESCE(frame_count, 0), COALESCE(duration_ms, 0), COALESCE(category, '')
		FROM assets WHERE id = ?
	`, assetID)

	a, err := scanAsset(row)
	if err != nil {
		return nil, err
	}
	detail := &AssetDetail{Asset: *a}

	if a.PackID != 0 {
		err = d.db.QueryRowContext(ctx, "SELECT name FROM packs WHERE id = ?", a.PackID).Scan(&detail.PackName)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		err = nil
	}

	tagRows, err := d.db.QueryContext(ctx, `
		SELECT t.name, at.source
		FROM asset_tags at
		JOIN tags t ON at.tag_id = t.id
		WHERE at.asset_id = ?
		ORDER BY t.name
	`, assetID)
	if err != nil {
		return nil, err
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var tn TaggedName
		if err = tagRows.Scan(&tn.Name, &tn.Source); err != nil {
			return nil, err
		}
		detail.Tags = append(detail.Tags, tn)
	}
	if err = tagRows.Err(); err != nil {
		return nil, err
	}

	colorRows, err := d.db.QueryContext(ctx, `
		SELECT color_hex, percentage
		FROM asset_colors
		WHERE asset_id = ?
		ORDER BY percentage DESC, color_hex
	`, assetID)
	if err != nil {
		return nil, err
	}
	defer colorRows.Close()
	for colorRows.Next() {
		var c colors.Color
		if err = colorRows.Scan(&c.Hex, &c.Percentage); err != nil {
			return nil, err
		}
		detail.Colors = append(detail.Colors, c)
	}
	if err = colorRows.Err(); err != nil {
		return nil, err
	}

	relRows, err := d.db.QueryContext(ctx, `
		SELECT ar.related_id, a.filename, COALESCE(ar.relation_type, '')
		FROM asset_relations ar
		JOIN assets a ON ar.related_id = a.id
		WHERE ar.asset_id = ?
		ORDER BY ar.related_id
	`, assetID)
	if err != nil {
		return nil, err
	}
	defer relRows.Close()
	for relRows.Next() {
		var r Relation
		if err = relRows.Scan(&r.RelatedID, &r.Filename, &r.Type); err != nil {
			return nil, err
		}
		detail.Relations = append(detail.Relations, r)
	}
	err = relRows.Err()
	if err != nil {
		return nil, err
	}

	return detail, nil
}

// GetStats summarizes the catalog.
func (d *Database) GetStats(ctx context.Context) (*Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	s := &Stats{Filetypes: make(map[string]int)}
	if err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM packs").Scan(&s.Packs); err != nil {
		return nil, err
	}
	if err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets").Scan(&s.Assets); err != nil {
		return nil, err
	}
	if err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags").Scan(&s.Tags); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx, "SELECT filetype, COUNT(*) FROM assets GROUP BY filetype")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ft string
		var count int
		if err = rows.Scan(&ft, &count); err != nil {
			return nil, err
		}
		s.Filetypes[ft] = count
	}
	err = rows.Err()
	return s, err
}
