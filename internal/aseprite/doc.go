// Package aseprite reads metadata from Aseprite (.aseprite/.ase) files
// without decoding pixel data: canvas dimensions, frame count, color depth,
// total animation duration, and animation tag names. The indexer stores the
// tag names with provenance "aseprite".
package aseprite
