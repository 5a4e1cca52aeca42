package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"asset-index/internal/colors"
	"asset-index/internal/phash"
	"asset-index/internal/sprite"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	d, err := New(context.Background(), filepath.Join(t.TempDir(), "assets.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return d
}

// insertAsset stores one asset inside its own batch and returns the id.
func insertAsset(t *testing.T, d *Database, a *Asset) int64 {
	t.Helper()
	b, err := d.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}
	id, err := d.UpsertAsset(b, a)
	if err := d.EndBatch(b, err); err != nil {
		t.Fatalf("upsert asset: %v", err)
	}
	return id
}

func TestUpsertAssetKeepsIDOnUpdate(t *testing.T) {
	d := testDB(t)

	a := &Asset{
		Path:     "demo/hero.png",
		Filename: "hero.png",
		Filetype: "png",
		FileHash: "abc",
		FileSize: 100,
		Width:    64,
		Height:   64,
	}
	first := insertAsset(t, d, a)

	a.FileHash = "def"
	a.FileSize = 120
	second := insertAsset(t, d, a)

	if first != second {
		t.Errorf("asset id changed on upsert: %d -> %d", first, second)
	}

	got, err := d.GetAssetByPath(context.Background(), "demo/hero.png")
	if err != nil {
		t.Fatalf("GetAssetByPath: %v", err)
	}
	if got.FileHash != "def" || got.FileSize != 120 {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestUpsertAssetClearsDerivedRows(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	a := &Asset{Path: "demo/hero.png", Filename: "hero.png", Filetype: "png", FileHash: "abc"}
	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	id, err := d.UpsertAsset(b, a)
	if err == nil {
		err = d.AddTags(b, id, []string{"hero", "demo"}, "path")
	}
	if err == nil {
		err = d.SetColors(b, id, []colors.Color{{Hex: "#ff0000", Percentage: 0.8}})
	}
	if err == nil {
		err = d.SetPHash(b, id, make(phash.Hash, phash.Size))
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatalf("first index: %v", err)
	}

	// Re-index with different derived data; old rows must be gone.
	b, err = d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	id2, err := d.UpsertAsset(b, a)
	if err == nil {
		err = d.AddTags(b, id2, []string{"hero"}, "path")
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatalf("re-index: %v", err)
	}

	detail, err := d.GetAssetDetail(ctx, id2)
	if err != nil {
		t.Fatalf("GetAssetDetail: %v", err)
	}
	if len(detail.Tags) != 1 || detail.Tags[0].Name != "hero" {
		t.Errorf("stale tags survived re-index: %+v", detail.Tags)
	}
	if len(detail.Colors) != 0 {
		t.Errorf("stale colors survived re-index: %+v", detail.Colors)
	}
	if _, err := d.PHashByAssetID(ctx, id2); err != sql.ErrNoRows {
		t.Errorf("stale phash survived re-index: err=%v", err)
	}
}

func TestPreviewBoundsRoundTrip(t *testing.T) {
	d := testDB(t)

	withBounds := &Asset{
		Path: "a.png", Filename: "a.png", Filetype: "png", FileHash: "x",
		PreviewBounds: &sprite.Rect{X: 0, Y: 0, Width: 64, Height: 64},
	}
	insertAsset(t, d, withBounds)
	noBounds := &Asset{Path: "b.jpg", Filename: "b.jpg", Filetype: "jpg", FileHash: "y"}
	insertAsset(t, d, noBounds)

	got, err := d.GetAssetByPath(context.Background(), "a.png")
	if err != nil {
		t.Fatal(err)
	}
	if got.PreviewBounds == nil || *got.PreviewBounds != (sprite.Rect{X: 0, Y: 0, Width: 64, Height: 64}) {
		t.Errorf("bounds = %+v, want 0,0,64,64", got.PreviewBounds)
	}

	got, err = d.GetAssetByPath(context.Background(), "b.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if got.PreviewBounds != nil {
		t.Errorf("bounds = %+v, want nil for asset without alpha", got.PreviewBounds)
	}
}

func TestAddTagsDeduplicates(t *testing.T) {
	d := testDB(t)

	a := &Asset{Path: "a.png", Filename: "a.png", Filetype: "png", FileHash: "x"}
	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	id, err := d.UpsertAsset(b, a)
	if err == nil {
		err = d.AddTags(b, id, []string{"goblin", "walk"}, "path")
	}
	if err == nil {
		// Same tag again from a different source; the edge must not duplicate.
		err = d.AddTags(b, id, []string{"walk"}, "aseprite")
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	detail, err := d.GetAssetDetail(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Tags) != 2 {
		t.Fatalf("tags = %+v, want 2 distinct", detail.Tags)
	}
	for _, tag := range detail.Tags {
		if tag.Name == "walk" && tag.Source != "path" {
			t.Errorf("first source must win, got %q", tag.Source)
		}
	}
}

func TestSearchFilters(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	packID, err := d.UpsertPack(b, "Goblins_v1.2", "Goblins_v1.2", "1.2")
	if err != nil {
		t.Fatal(d.EndBatch(b, err))
	}
	goblin := &Asset{PackID: packID, Path: "Goblins_v1.2/goblin.png", Filename: "goblin.png", Filetype: "png", FileHash: "g"}
	gid, err := d.UpsertAsset(b, goblin)
	if err == nil {
		err = d.AddTags(b, gid, []string{"goblin"}, "path")
	}
	if err == nil {
		err = d.SetColors(b, gid, []colors.Color{{Hex: "#00ff00", Percentage: 0.6}})
	}
	var kid int64
	if err == nil {
		knight := &Asset{Path: "knights/knight.gif", Filename: "knight.gif", Filetype: "gif", FileHash: "k"}
		kid, err = d.UpsertAsset(b, knight)
	}
	if err == nil {
		err = d.AddTags(b, kid, []string{"knight"}, "path")
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		filters SearchFilters
		want    []string
	}{
		{"by query", SearchFilters{Query: "goblin"}, []string{"goblin.png"}},
		{"by tag", SearchFilters{Tags: []string{"knight"}}, []string{"knight.gif"}},
		{"by filetype", SearchFilters{Filetype: "gif"}, []string{"knight.gif"}},
		{"by pack", SearchFilters{Pack: "Goblins"}, []string{"goblin.png"}},
		{"by color name", SearchFilters{Color: "green"}, []string{"goblin.png"}},
		{"by color hex", SearchFilters{Color: "#00ff00"}, []string{"goblin.png"}},
		{"no match", SearchFilters{Query: "dragon"}, nil},
		{"all", SearchFilters{}, []string{"goblin.png", "knight.gif"}},
		{"tag and type conflict", SearchFilters{Tags: []string{"goblin"}, Filetype: "gif"}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results, err := d.Search(ctx, tc.filters)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(results) != len(tc.want) {
				t.Fatalf("got %d results, want %d: %+v", len(results), len(tc.want), results)
			}
			for i, want := range tc.want {
				if results[i].Filename != want {
					t.Errorf("result %d = %s, want %s", i, results[i].Filename, want)
				}
			}
		})
	}
}

func TestSearchReturnsTagsAndPackName(t *testing.T) {
	d := testDB(t)

	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	packID, err := d.UpsertPack(b, "Demo", "Demo", "")
	var id int64
	if err == nil {
		id, err = d.UpsertAsset(b, &Asset{PackID: packID, Path: "Demo/hero.png", Filename: "hero.png", Filetype: "png", FileHash: "h"})
	}
	if err == nil {
		err = d.AddTags(b, id, []string{"hero", "demo"}, "path")
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	results, err := d.Search(context.Background(), SearchFilters{Query: "hero"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].PackName != "Demo" {
		t.Errorf("pack name = %q, want Demo", results[0].PackName)
	}
	if len(results[0].Tags) != 2 || results[0].Tags[0] != "demo" || results[0].Tags[1] != "hero" {
		t.Errorf("tags = %v, want [demo hero]", results[0].Tags)
	}
}

func TestFindSimilarZeroDistance(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	h := phash.Hash{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	near := phash.Hash{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x09} // 1 bit off

	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	var ref, dup, fuzzy int64
	ref, err = d.UpsertAsset(b, &Asset{Path: "x.png", Filename: "x.png", Filetype: "png", FileHash: "1"})
	if err == nil {
		err = d.SetPHash(b, ref, h)
	}
	if err == nil {
		dup, err = d.UpsertAsset(b, &Asset{Path: "y.png", Filename: "y.png", Filetype: "png", FileHash: "2"})
	}
	if err == nil {
		err = d.SetPHash(b, dup, h)
	}
	if err == nil {
		fuzzy, err = d.UpsertAsset(b, &Asset{Path: "z.png", Filename: "z.png", Filetype: "png", FileHash: "3"})
	}
	if err == nil {
		err = d.SetPHash(b, fuzzy, near)
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	// maxDistance 0: exactly the bit-identical duplicate, not self, no fuzzy.
	results, err := d.FindSimilar(ctx, h, 0, 10, ref)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].AssetID != dup || results[0].Distance != 0 {
		t.Errorf("zero-distance query = %+v, want exactly the duplicate", results)
	}

	// Wider query includes the near match, nearest first.
	results, err = d.FindSimilar(ctx, h, 8, 10, ref)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].AssetID != dup || results[1].AssetID != fuzzy {
		t.Errorf("ranked query = %+v, want [dup fuzzy]", results)
	}
	if results[1].Distance != 1 {
		t.Errorf("fuzzy distance = %d, want 1", results[1].Distance)
	}
}

func TestFindSimilarTieBreakAndLimit(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	h := make(phash.Hash, phash.Size)
	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	var ids []int64
	for _, path := range []string{"c.png", "a.png", "b.png"} {
		var id int64
		id, err = d.UpsertAsset(b, &Asset{Path: path, Filename: path, Filetype: "png", FileHash: path})
		if err != nil {
			break
		}
		if err = d.SetPHash(b, id, h); err != nil {
			break
		}
		ids = append(ids, id)
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	results, err := d.FindSimilar(ctx, h, 0, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	// Equal distances order by ascending asset id for deterministic output.
	for i := 1; i < len(results); i++ {
		if results[i-1].AssetID >= results[i].AssetID {
			t.Errorf("tie-break not by asset id: %+v", results)
		}
	}

	limited, err := d.FindSimilar(ctx, h, 0, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[0].AssetID != ids[0] {
		t.Errorf("limited = %+v, want first 2 by id", limited)
	}
}

func TestPackUpsertAndCounts(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	first, err := d.UpsertPack(b, "Goblins_v1.2", "Goblins_v1.2", "1.2")
	var second int64
	if err == nil {
		second, err = d.UpsertPack(b, "Goblins_v1.2", "Goblins_v1.2", "1.2")
	}
	if err == nil {
		_, err = d.UpsertAsset(b, &Asset{PackID: first, Path: "Goblins_v1.2/a.png", Filename: "a.png", Filetype: "png", FileHash: "a"})
	}
	if err == nil {
		_, err = d.UpsertAsset(b, &Asset{PackID: first, Path: "Goblins_v1.2/b.png", Filename: "b.png", Filetype: "png", FileHash: "b"})
	}
	if err == nil {
		err = d.UpdatePackCounts(b)
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	if first != second {
		t.Errorf("pack upsert changed id: %d -> %d", first, second)
	}

	packs, err := d.ListPacks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(packs) != 1 {
		t.Fatalf("got %d packs, want 1", len(packs))
	}
	p := packs[0]
	if p.Version != "1.2" || p.AssetCount != 2 {
		t.Errorf("pack = %+v, want version 1.2 and 2 assets", p)
	}
}

func TestSetPackPreview(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	id, err := d.UpsertPack(b, "Goblins", "Goblins", "")
	if err == nil {
		err = d.SetPackPreview(b, id, "Goblins/preview.png")
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	packs, err := d.ListPacks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(packs) != 1 || packs[0].PreviewPath != "Goblins/preview.png" {
		t.Errorf("packs = %+v, want preview_path Goblins/preview.png", packs)
	}

	// Re-indexing the pack keeps the preview path.
	b, err = d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	_, err = d.UpsertPack(b, "Goblins", "Goblins", "")
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}
	packs, err = d.ListPacks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if packs[0].PreviewPath != "Goblins/preview.png" {
		t.Errorf("preview_path = %q after re-upsert, want it preserved", packs[0].PreviewPath)
	}
}

func TestVacuum(t *testing.T) {
	d := testDB(t)

	insertAsset(t, d, &Asset{Path: "pack/a.png", Filename: "a.png", Filetype: "png", FileHash: "a"})
	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	err = d.DeleteAsset(b, "pack/a.png")
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	if err := d.Vacuum(); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
}

func TestDetectRelations(t *testing.T) {
	d := testDB(t)

	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	var heroID, shadowID, gifID int64
	heroID, err = d.UpsertAsset(b, &Asset{Path: "pack/hero.png", Filename: "hero.png", Filetype: "png", FileHash: "1"})
	if err == nil {
		shadowID, err = d.UpsertAsset(b, &Asset{Path: "pack/_Shadows/hero.png", Filename: "hero.png", Filetype: "png", FileHash: "2"})
	}
	if err == nil {
		gifID, err = d.UpsertAsset(b, &Asset{Path: "pack/_GIFs/hero.gif", Filename: "hero.gif", Filetype: "gif", FileHash: "3"})
	}
	if err == nil {
		err = d.DetectRelations(b)
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	detail, err := d.GetAssetDetail(context.Background(), heroID)
	if err != nil {
		t.Fatal(err)
	}
	byType := make(map[string]int64)
	for _, r := range detail.Relations {
		byType[r.Type] = r.RelatedID
	}
	if byType["shadow"] != shadowID {
		t.Errorf("relations = %+v, want shadow -> %d", detail.Relations, shadowID)
	}
	if byType["gif_preview"] != gifID {
		t.Errorf("relations = %+v, want gif_preview -> %d", detail.Relations, gifID)
	}

	// The shadow sheet itself gains no shadow edge.
	shadowDetail, err := d.GetAssetDetail(context.Background(), shadowID)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range shadowDetail.Relations {
		if r.Type == "shadow" {
			t.Errorf("shadow asset has its own shadow relation: %+v", r)
		}
	}
}

func TestPreviewOverridesSurviveReindexAndDelete(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	a := &Asset{Path: "pack/sheet.png", Filename: "sheet.png", Filetype: "png", FileHash: "1"}
	insertAsset(t, d, a)

	if err := d.SetPreviewOverride(ctx, "pack/sheet.png", true); err != nil {
		t.Fatal(err)
	}

	// Re-index then prune the asset entirely; the override stays.
	a.FileHash = "2"
	insertAsset(t, d, a)

	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	err = d.DeleteAsset(b, "pack/sheet.png")
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	o, err := d.GetPreviewOverride(ctx, "pack/sheet.png")
	if err != nil {
		t.Fatal(err)
	}
	if o == nil || !o.UseFullImage {
		t.Errorf("override lost: %+v", o)
	}

	overrides, err := d.ListPreviewOverrides(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(overrides) != 1 {
		t.Errorf("got %d overrides, want 1", len(overrides))
	}

	if err := d.DeletePreviewOverride(ctx, "pack/sheet.png"); err != nil {
		t.Fatal(err)
	}
	o, err = d.GetPreviewOverride(ctx, "pack/sheet.png")
	if err != nil {
		t.Fatal(err)
	}
	if o != nil {
		t.Errorf("override not deleted: %+v", o)
	}
}

func TestDeleteAssetRemovesDerivedRows(t *testing.T) {
	d := testDB(t)
	ctx := context.Background()

	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	id, err := d.UpsertAsset(b, &Asset{Path: "gone.png", Filename: "gone.png", Filetype: "png", FileHash: "1"})
	if err == nil {
		err = d.AddTags(b, id, []string{"gone"}, "path")
	}
	if err == nil {
		err = d.SetPHash(b, id, make(phash.Hash, phash.Size))
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	b, err = d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	err = d.DeleteAsset(b, "gone.png")
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	if _, err := d.GetAssetByPath(ctx, "gone.png"); err != sql.ErrNoRows {
		t.Errorf("asset still present: err=%v", err)
	}
	if _, err := d.PHashByAssetID(ctx, id); err != sql.ErrNoRows {
		t.Errorf("phash still present: err=%v", err)
	}

	// Deleting a path that never existed is a no-op.
	b, err = d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	err = d.DeleteAsset(b, "never-existed.png")
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}
}

func TestGetStats(t *testing.T) {
	d := testDB(t)

	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	_, err = d.UpsertPack(b, "Demo", "Demo", "")
	var id int64
	if err == nil {
		id, err = d.UpsertAsset(b, &Asset{Path: "Demo/a.png", Filename: "a.png", Filetype: "png", FileHash: "a"})
	}
	if err == nil {
		_, err = d.UpsertAsset(b, &Asset{Path: "Demo/b.gif", Filename: "b.gif", Filetype: "gif", FileHash: "b"})
	}
	if err == nil {
		err = d.AddTags(b, id, []string{"demo"}, "path")
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	stats, err := d.GetStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Packs != 1 || stats.Assets != 2 || stats.Tags != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Filetypes["png"] != 1 || stats.Filetypes["gif"] != 1 {
		t.Errorf("filetypes = %+v", stats.Filetypes)
	}
}

func TestAssetHashes(t *testing.T) {
	d := testDB(t)

	insertAsset(t, d, &Asset{Path: "a.png", Filename: "a.png", Filetype: "png", FileHash: "hash-a"})
	insertAsset(t, d, &Asset{Path: "b.png", Filename: "b.png", Filetype: "png", FileHash: "hash-b"})

	hashes, err := d.AssetHashes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(hashes) != 2 || hashes["a.png"] != "hash-a" || hashes["b.png"] != "hash-b" {
		t.Errorf("hashes = %+v", hashes)
	}
}

func TestListTags(t *testing.T) {
	d := testDB(t)

	b, err := d.BeginBatch()
	if err != nil {
		t.Fatal(err)
	}
	a1, err := d.UpsertAsset(b, &Asset{Path: "a.png", Filename: "a.png", Filetype: "png", FileHash: "a"})
	var a2 int64
	if err == nil {
		a2, err = d.UpsertAsset(b, &Asset{Path: "b.png", Filename: "b.png", Filetype: "png", FileHash: "b"})
	}
	if err == nil {
		err = d.AddTags(b, a1, []string{"goblin", "walk"}, "path")
	}
	if err == nil {
		err = d.AddTags(b, a2, []string{"goblin"}, "path")
	}
	if err := d.EndBatch(b, err); err != nil {
		t.Fatal(err)
	}

	tags, err := d.ListTags(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 2 || tags[0].Name != "goblin" || tags[0].Count != 2 {
		t.Errorf("tags = %+v, want goblin first with count 2", tags)
	}
}
