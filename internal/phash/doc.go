// Package phash computes 64-bit perceptual hashes for visual similarity
// search. Hashes are stored as 8-byte blobs and compared by Hamming distance;
// resized or lightly recolored variants of an asset land within a few bits of
// each other.
package phash
