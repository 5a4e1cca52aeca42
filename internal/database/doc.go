// Package database implements the SQLite catalog store for indexed assets.
//
// The catalog holds packs, assets, tags, dominant colors, perceptual hashes,
// asset relations, and preview overrides. Writes from an indexing run funnel
// through a single Batch transaction; reads use normal connection-pool
// isolation. The store uses WAL mode with a busy timeout so a search can run
// while an index batch commits.
package database
