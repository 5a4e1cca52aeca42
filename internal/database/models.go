package database

import (
	"time"

	"asset-index/internal/colors"
	"asset-index/internal/sprite"
)

// Pack is a top-level asset collection, keyed by its directory path relative
// to the asset root.
type Pack struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Version     string `json:"version,omitempty"`
	PreviewPath string `json:"preview_path,omitempty"`
	AssetCount  int    `json:"asset_count"`
}

// Asset is one indexed file. PreviewBounds is nil when no sprite was
// detected; the serving layer then shows the full image.
type Asset struct {
	ID            int64        `json:"id"`
	PackID        int64        `json:"pack_id,omitempty"`
	Path          string       `json:"path"`
	Filename      string       `json:"filename"`
	Filetype      string       `json:"filetype"`
	FileHash      string       `json:"file_hash"`
	FileSize      int64        `json:"file_size"`
	Width         int          `json:"width,omitempty"`
	Height        int          `json:"height,omitempty"`
	PreviewBounds *sprite.Rect `json:"preview_bounds,omitempty"`
	FrameCount    int          `json:"frame_count,omitempty"`
	DurationMS    int          `json:"duration_ms,omitempty"`
	Category      string       `json:"category,omitempty"`
}

// TaggedName is a tag with its provenance ("path", "aseprite", or "manual").
type TaggedName struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Relation links an asset to a derived variant, e.g. its shadow sheet or an
// animated GIF preview.
type Relation struct {
	RelatedID int64  `json:"related_id"`
	Filename  string `json:"filename"`
	Type      string `json:"type"`
}

// SearchResult is one row of a filtered search: the asset plus its pack name
// and tag list.
type SearchResult struct {
	Asset
	PackName string   `json:"pack_name,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// SimilarAsset is one ranked neighbor from a similarity scan.
type SimilarAsset struct {
	AssetID  int64  `json:"asset_id"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
	PackName string `json:"pack_name,omitempty"`
	Distance int    `json:"distance"`
}

// AssetDetail is the full per-asset view: metadata plus tags, colors, and
// relations.
type AssetDetail struct {
	Asset
	PackName  string         `json:"pack_name,omitempty"`
	Tags      []TaggedName   `json:"tags,omitempty"`
	Colors    []colors.Color `json:"colors,omitempty"`
	Relations []Relation     `json:"relations,omitempty"`
}

// TagCount is a tag name with the number of assets carrying it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PreviewOverride marks an asset whose detected sprite bounds should be
// ignored in favor of the full image. Rows are keyed by asset path so they
// survive re-indexing.
type PreviewOverride struct {
	Path         string    `json:"path"`
	UseFullImage bool      `json:"use_full_image"`
	CreatedAt    time.Time `json:"created_at"`
}

// Stats summarizes the catalog.
type Stats struct {
	Packs     int            `json:"packs"`
	Assets    int            `json:"assets"`
	Tags      int            `json:"tags"`
	Filetypes map[string]int `json:"filetypes"`
}
