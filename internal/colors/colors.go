package colors

import (
	"fmt"
	"image"
	"sort"

	"github.com/disintegration/imaging"
)

// Color is one dominant color with its share of the sampled pixels.
type Color struct {
	Hex        string  `json:"hex"`
	Percentage float64 `json:"percentage"`
}

// Options controls dominant-color extraction.
type Options struct {
	// MaxColors is the maximum number of colors to report.
	MaxColors int
	// MinPercentage is the minimum pixel share for a color to be reported.
	MinPercentage float64
	// SampleSize bounds the longest edge of the downsampled image.
	SampleSize int
}

// DefaultOptions returns the extraction parameters used by the indexer.
func DefaultOptions() Options {
	return Options{
		MaxColors:     5,
		MinPercentage: 0.05,
		SampleSize:    100,
	}
}

// Dominant extracts the dominant colors of an image with DefaultOptions.
func Dominant(img image.Image) []Color {
	return DominantWithOptions(img, DefaultOptions())
}

// DominantWithOptions quantizes the image into its most frequent exact colors.
//
// Alpha is dropped; the image is downsampled to opts.SampleSize on its longest
// edge with nearest-neighbor so pixel-art palettes survive intact. Output is
// deterministic for a given pixel buffer: colors sort by frequency descending,
// ties broken by color value ascending.
func DominantWithOptions(img image.Image, opts Options) []Color {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil
	}

	sampled := imaging.Clone(img)
	if opts.SampleSize > 0 && (b.Dx() > opts.SampleSize || b.Dy() > opts.SampleSize) {
		sampled = imaging.Fit(img, opts.SampleSize, opts.SampleSize, imaging.NearestNeighbor)
	}

	counts := make(map[uint32]int)
	pix := sampled.Pix
	total := 0
	for i := 0; i+3 < len(pix); i += 4 {
		key := uint32(pix[i])<<16 | uint32(pix[i+1])<<8 | uint32(pix[i+2])
		counts[key]++
		total++
	}
	if total == 0 {
		return nil
	}

	type entry struct {
		key   uint32
		count int
	}
	entries := make([]entry, 0, len(counts))
	for k, c := range counts {
		entries = append(entries, entry{k, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})

	var result []Color
	for _, e := range entries {
		if len(result) >= opts.MaxColors {
			break
		}
		pct := float64(e.count) / float64(total)
		if pct < opts.MinPercentage {
			break // sorted by count, nothing further can qualify
		}
		result = append(result, Color{
			Hex:        fmt.Sprintf("#%06x", e.key),
			Percentage: pct,
		})
	}
	return result
}
