// Package assettypes provides shared type definitions and extension tables for
// asset file handling across the indexer.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles.
package assettypes
