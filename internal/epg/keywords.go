package epg

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Clark-Hu/ghost-guide/internal/domain"
)

// Keywords lists the lower-case terms that place a program in a category.
type Keywords struct {
	Horror []string `yaml:"horror"`
	SciFi  []string `yaml:"scifi"`
}

// DefaultKeywords returns the built-in keyword lists.
func DefaultKeywords() Keywords {
	return Keywords{
		Horror: []string{
			"horror", "terror", "scary", "haunt", "ghost", "zombie", "vampire",
			"slasher", "paranormal", "supernatural", "monster", "creepy",
			"fright", "evil", "demon", "exorcis", "werewolf", "possess",
		},
		SciFi: []string{
			"sci-fi", "scifi", "science fiction", "sci fi", "space", "alien",
			"robot", "future", "dystopia", "time travel", "galaxy", "star trek",
			"mystery science", "cyborg", "android",
		},
	}
}

// LoadKeywords reads a YAML keyword file. Categories missing from the file
// keep their defaults.
func LoadKeywords(path string) (Keywords, error) {
	kw := DefaultKeywords()
	if path == "" {
		return kw, nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return Keywords{}, fmt.Errorf("read keywords file: %w", err)
	}
	var override Keywords
	if err := yaml.Unmarshal(payload, &override); err != nil {
		return Keywords{}, fmt.Errorf("parse keywords file %s: %w", path, err)
	}
	if len(override.Horror) > 0 {
		kw.Horror = override.Horror
	}
	if len(override.SciFi) > 0 {
		kw.SciFi = override.SciFi
	}
	return kw.normalized(), nil
}

func (k Keywords) normalized() Keywords {
	return Keywords{Horror: normalizeTerms(k.Horror), SciFi: normalizeTerms(k.SciFi)}
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Classifier assigns programs to the horror or sci-fi category.
type Classifier struct {
	keywords Keywords
}

// NewClassifier builds a classifier from keyword lists.
func NewClassifier(kw Keywords) *Classifier {
	return &Classifier{keywords: kw.normalized()}
}

// Classify returns the category for the given descriptive texts, or "" when
// none match. Horror terms are tried before sci-fi terms.
func (c *Classifier) Classify(texts ...string) string {
	haystack := strings.ToLower(strings.Join(texts, "\n"))
	if containsAny(haystack, c.keywords.Horror) {
		return domain.CategoryHorror
	}
	if containsAny(haystack, c.keywords.SciFi) {
		return domain.CategorySciFi
	}
	return ""
}

func containsAny(haystack string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}
