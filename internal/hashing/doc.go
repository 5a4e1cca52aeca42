// Package hashing computes content digests used for incremental change
// detection. A file is reprocessed on re-index only when its digest differs
// from the one stored in the catalog.
package hashing
