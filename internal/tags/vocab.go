package tags

import (
	"fmt"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Vocabulary holds the word tables the Extractor normalizes against.
type Vocabulary struct {
	// Aliases maps shorthand words to their canonical tag.
	Aliases map[string]string `yaml:"aliases"`
	// NoiseWords are words that never become tags.
	NoiseWords []string `yaml:"noise_words"`
	// Actions are keywords matched as substrings of the filename stem.
	Actions []string `yaml:"actions"`

	noise map[string]struct{}
}

// DefaultVocabulary returns the built-in tag vocabulary.
func DefaultVocabulary() Vocabulary {
	v := Vocabulary{
		Aliases: map[string]string{
			"dmg":   "damage",
			"atk":   "attack",
			"char":  "character",
			"chars": "characters",
			"anim":  "animation",
			"anims": "animations",
		},
		NoiseWords: []string{
			"assets", "asset", "commercial", "version", "free", "v", "the", "and", "or",
			"gifs", "gif", "shadows", "shadow", "animationinfo", "txt", "png",
		},
		Actions: []string{
			"attack", "idle", "walk", "run", "jump", "die", "damage", "hit", "cast", "shoot",
		},
	}
	v.buildNoiseSet()
	return v
}

// LoadVocabulary reads a vocabulary from a YAML file. Empty sections fall
// back to the defaults so a file can override just the aliases.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary %s: %w", path, err)
	}

	v := DefaultVocabulary()
	var loaded Vocabulary
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	if loaded.Aliases != nil {
		v.Aliases = loaded.Aliases
	}
	if loaded.NoiseWords != nil {
		v.NoiseWords = loaded.NoiseWords
	}
	if loaded.Actions != nil {
		v.Actions = loaded.Actions
	}

	if err := v.Validate(); err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	v.buildNoiseSet()
	return v, nil
}

// Validate checks that the vocabulary tables are usable.
func (v Vocabulary) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.Actions, validation.Required),
		validation.Field(&v.Aliases, validation.By(lowercaseAliases)),
	)
}

func lowercaseAliases(value interface{}) error {
	aliases, _ := value.(map[string]string)
	for from, to := range aliases {
		if from != strings.ToLower(from) || to != strings.ToLower(to) {
			return fmt.Errorf("alias %q -> %q must be lowercase", from, to)
		}
	}
	return nil
}

func (v *Vocabulary) buildNoiseSet() {
	v.noise = make(map[string]struct{}, len(v.NoiseWords))
	for _, w := range v.NoiseWords {
		v.noise[w] = struct{}{}
	}
}

func (v Vocabulary) isNoise(word string) bool {
	if v.noise != nil {
		_, ok := v.noise[word]
		return ok
	}
	for _, w := range v.NoiseWords {
		if w == word {
			return true
		}
	}
	return false
}

func (v Vocabulary) resolve(word string) string {
	if canonical, ok := v.Aliases[word]; ok {
		return canonical
	}
	return word
}
