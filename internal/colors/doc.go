// Package colors extracts a small set of dominant colors from an image,
// reported as hex values with area percentages. The catalog stores these for
// color-filtered search.
package colors
