package classify

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"healthcare-assistant/internal/domain"
)

//go:embed keywords.yaml
var defaultKeywords []byte

// Category is one intent and the phrases that vote for it.
type Category struct {
	Intent   domain.Intent `yaml:"intent"`
	Keywords []string      `yaml:"keywords"`
}

// UrgencyKeywords holds the two severity phrase sets. Urgent dominates moderate.
type UrgencyKeywords struct {
	Urgent   []string `yaml:"urgent"`
	Moderate []string `yaml:"moderate"`
}

// Tables is the read-only keyword configuration shared by the Classifier and
// the Assessor. Category order is significant.
type Tables struct {
	Intents []Category      `yaml:"intents"`
	Urgency UrgencyKeywords `yaml:"urgency"`
}

// DefaultTables returns the keyword tables compiled into the binary.
func DefaultTables() (Tables, error) {
	return LoadTables(bytes.NewReader(defaultKeywords))
}

// MustDefaultTables is DefaultTables for package initialisation paths where the
// embedded document is known to be valid.
func MustDefaultTables() Tables {
	t, err := DefaultTables()
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTables decodes and normalizes a YAML keyword document.
func LoadTables(r io.Reader) (Tables, error) {
	var t Tables
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Tables{}, fmt.Errorf("classify: decode keyword tables: %w", err)
	}
	if err := t.normalize(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

func (t *Tables) normalize() error {
	if len(t.Intents) == 0 {
		return errors.New("classify: keyword tables define no intents")
	}
	seen := make(map[domain.Intent]struct{}, len(t.Intents))
	for i := range t.Intents {
		c := &t.Intents[i]
		c.Intent = domain.Intent(strings.TrimSpace(string(c.Intent)))
		if c.Intent == "" {
			return fmt.Errorf("classify: intent #%d has no name", i)
		}
		if _, dup := seen[c.Intent]; dup {
			return fmt.Errorf("classify: duplicate intent %q", c.Intent)
		}
		seen[c.Intent] = struct{}{}
		c.Keywords = normalizeKeywords(c.Keywords)
		if len(c.Keywords) == 0 {
			return fmt.Errorf("classify: intent %q has no keywords", c.Intent)
		}
	}
	t.Urgency.Urgent = normalizeKeywords(t.Urgency.Urgent)
	t.Urgency.Moderate = normalizeKeywords(t.Urgency.Moderate)
	return nil
}

// clone deep-copies the tables so callers cannot mutate a component's view.
func (t Tables) clone() Tables {
	out := Tables{
		Intents: make([]Category, len(t.Intents)),
		Urgency: UrgencyKeywords{
			Urgent:   append([]string(nil), t.Urgency.Urgent...),
			Moderate: append([]string(nil), t.Urgency.Moderate...),
		},
	}
	for i, c := range t.Intents {
		out.Intents[i] = Category{Intent: c.Intent, Keywords: append([]string(nil), c.Keywords...)}
	}
	return out
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
