package assettypes

import (
	"path/filepath"
	"strings"
)

// FileType classifies an indexed asset by its extension.
type FileType string

const (
	// FileTypeImage is a raster image (png, gif, jpg, jpeg, webp).
	FileTypeImage FileType = "image"
	// FileTypeAseprite is an Aseprite project file (.aseprite, .ase).
	FileTypeAseprite FileType = "aseprite"
	// FileTypeOther is anything the indexer does not handle.
	FileTypeOther FileType = "other"
)

// ImageExtensions maps raster image extensions to whether they are supported.
var ImageExtensions = map[string]bool{
	".png":  true,
	".gif":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// AsepriteExtensions maps Aseprite project extensions to whether they are supported.
var AsepriteExtensions = map[string]bool{
	".aseprite": true,
	".ase":      true,
}

// GetFileType returns the FileType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".png").
func GetFileType(ext string) FileType {
	if ImageExtensions[ext] {
		return FileTypeImage
	}
	if AsepriteExtensions[ext] {
		return FileTypeAseprite
	}
	return FileTypeOther
}

// IsAsset returns true if the path names an indexable asset file.
func IsAsset(path string) bool {
	return TypeOf(path) != FileTypeOther
}

// TypeOf classifies a path by its extension.
func TypeOf(path string) FileType {
	return GetFileType(strings.ToLower(filepath.Ext(path)))
}

// Filetype returns the catalog filetype string for a path: the lowercase
// extension without the leading dot ("png", "aseprite", ...).
func Filetype(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
