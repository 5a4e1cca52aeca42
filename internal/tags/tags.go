package tags

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	separators   = regexp.MustCompile(`[_\-\s]+`)
	versionToken = regexp.MustCompile(`(?i)^v?\d+(\.\d+)*$`)
	versionName  = regexp.MustCompile(`(?i)v(\d+(?:\.\d+)*)`)
)

// Extractor derives normalized tags from asset paths using a fixed
// vocabulary. The vocabulary is immutable after construction so concurrent
// indexer workers can share one Extractor.
type Extractor struct {
	vocab Vocabulary
}

// NewExtractor returns an Extractor over the given vocabulary.
func NewExtractor(vocab Vocabulary) *Extractor {
	return &Extractor{vocab: vocab}
}

// Extract returns the sorted, deduplicated tag set for a path relative to the
// asset root.
//
// Each directory segment and the filename stem are split on underscore,
// hyphen, and whitespace. Version tokens like "v2" or "1.0.3" are dropped,
// words are lowercased, noise words and single characters are dropped, and
// aliases are resolved. The filename stem is additionally scanned for action
// keywords by substring match.
func (e *Extractor) Extract(relPath string) []string {
	set := make(map[string]struct{})

	relPath = filepath.ToSlash(relPath)
	parts := strings.Split(relPath, "/")
	if len(parts) > 0 {
		last := parts[len(parts)-1]
		parts[len(parts)-1] = strings.TrimSuffix(last, filepath.Ext(last))
	}

	for _, part := range parts {
		for _, word := range separators.Split(part, -1) {
			if versionToken.MatchString(word) {
				continue
			}
			word = strings.ToLower(word)
			if len(word) < 2 || e.vocab.isNoise(word) {
				continue
			}
			set[e.vocab.resolve(word)] = struct{}{}
		}
	}

	stem := strings.ToLower(parts[len(parts)-1])
	for _, action := range e.vocab.Actions {
		if strings.Contains(stem, action) {
			set[action] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Version extracts a version number from a pack or file name, e.g.
// "Goblins_v1.2" yields "1.2". Returns "" when no version marker is present.
func Version(name string) string {
	m := versionName.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}
