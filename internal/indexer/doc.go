// Package indexer orchestrates catalog builds over an asset tree.
//
// A run enumerates asset files, skips unchanged ones by content hash, and
// fans the rest across a worker pool that decodes, fingerprints, and tags
// each file. Workers never touch the database; results funnel through a
// single writer that commits in batches. Post-passes refresh pack counts and
// detect shadow/GIF relations once every row is in place.
package indexer
