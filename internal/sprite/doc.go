// Package sprite detects the bounds of the first sprite in a spritesheet.
//
// Multi-frame sheets are previewed by cropping the first frame rather than
// shrinking the whole sheet into an unreadable strip. The detector flood-fills
// from the first non-transparent pixel and returns the silhouette's bounding
// box; callers treat a missing result as "show the full image".
package sprite
