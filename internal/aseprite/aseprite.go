package aseprite

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Magic numbers from the ase-file-specs document.
const (
	headerMagic = 0xA5E0
	frameMagic  = 0xF1FA

	chunkTags = 0x2018

	headerSize      = 128
	frameHeaderSize = 16
)

// Metadata is the indexable summary of an Aseprite file: canvas size, frame
// count, color depth, total animation duration, and animation tag names.
type Metadata struct {
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	FrameCount int      `json:"frame_count"`
	ColorDepth int      `json:"color_depth"`
	DurationMS int      `json:"duration_ms"`
	Tags       []string `json:"tags,omitempty"`
}

// ParseFile reads an .aseprite/.ase file and returns its metadata.
func ParseFile(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aseprite file: %w", err)
	}
	meta, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return meta, nil
}

// Parse extracts metadata from raw Aseprite file bytes. Pixel data is never
// decoded; chunks other than animation tags are skipped by size.
func Parse(data []byte) (*Metadata, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("file too small: %d bytes", len(data))
	}

	le := binary.LittleEndian
	magic := le.Uint16(data[4:])
	if magic != headerMagic {
		return nil, fmt.Errorf("bad header magic 0x%04X", magic)
	}

	meta := &Metadata{
		FrameCount: int(le.Uint16(data[6:])),
		Width:      int(le.Uint16(data[8:])),
		Height:     int(le.Uint16(data[10:])),
		ColorDepth: int(le.Uint16(data[12:])),
	}

	offset := headerSize
	for frame := 0; frame < meta.FrameCount; frame++ {
		if offset+frameHeaderSize > len(data) {
			break
		}
		frameSize := int(le.Uint32(data[offset:]))
		if le.Uint16(data[offset+4:]) != frameMagic {
			return nil, fmt.Errorf("bad frame magic at offset %d", offset)
		}
		oldChunks := int(le.Uint16(data[offset+6:]))
		meta.DurationMS += int(le.Uint16(data[offset+8:]))

		numChunks := oldChunks
		if oldChunks == 0xFFFF {
			numChunks = int(le.Uint32(data[offset+12:]))
		}

		chunkOffset := offset + frameHeaderSize
		for i := 0; i < numChunks; i++ {
			if chunkOffset+6 > len(data) {
				break
			}
			chunkSize := int(le.Uint32(data[chunkOffset:]))
			chunkType := le.Uint16(data[chunkOffset+4:])
			if chunkSize < 6 || chunkOffset+chunkSize > len(data) {
				return nil, fmt.Errorf("truncated chunk at offset %d", chunkOffset)
			}
			if chunkType == chunkTags {
				meta.Tags = append(meta.Tags, parseTagsChunk(data[chunkOffset+6:chunkOffset+chunkSize])...)
			}
			chunkOffset += chunkSize
		}

		if frameSize <= 0 {
			break
		}
		offset += frameSize
	}

	return meta, nil
}

// parseTagsChunk returns the animation tag names in a 0x2018 chunk. Each tag
// record is 18 bytes (frame range, direction, repeat, reserved, color) plus a
// length-prefixed UTF-8 name.
func parseTagsChunk(data []byte) []string {
	if len(data) < 10 {
		return nil
	}
	le := binary.LittleEndian
	numTags := int(le.Uint16(data))

	var names []string
	offset := 10
	for i := 0; i < numTags; i++ {
		if offset+18 > len(data) {
			break
		}
		nameLen := int(le.Uint16(data[offset+16:]))
		if offset+18+nameLen > len(data) {
			break
		}
		names = append(names, string(data[offset+18:offset+18+nameLen]))
		offset += 18 + nameLen
	}
	return names
}
