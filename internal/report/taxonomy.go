package report

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomyYAML []byte

// Label is one category with the description shown to the classifier.
type Label struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Taxonomy is the closed category vocabulary.
type Taxonomy struct {
	Labels   []Label `yaml:"labels"`
	Fallback string  `yaml:"fallback"`
}

// DefaultTaxonomy returns the built-in German category set.
func DefaultTaxonomy() Taxonomy {
	tax, err := ParseTaxonomy(defaultTaxonomyYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded taxonomy: %v", err))
	}
	return tax
}

// LoadTaxonomy reads a taxonomy YAML file. An empty path returns the default.
func LoadTaxonomy(path string) (Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTaxonomy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("read taxonomy: %w", err)
	}
	tax, err := ParseTaxonomy(data)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("taxonomy %s: %w", path, err)
	}
	return tax, nil
}

// ParseTaxonomy decodes and validates taxonomy YAML.
func ParseTaxonomy(data []byte) (Taxonomy, error) {
	var tax Taxonomy
	if err := yaml.Unmarshal(data, &tax); err != nil {
		return Taxonomy{}, fmt.Errorf("decode: %w", err)
	}
	seen := make(map[string]struct{}, len(tax.Labels))
	for i := range tax.Labels {
		tax.Labels[i].Name = strings.TrimSpace(tax.Labels[i].Name)
		tax.Labels[i].Description = strings.TrimSpace(tax.Labels[i].Description)
		name := tax.Labels[i].Name
		if name == "" {
			return Taxonomy{}, fmt.Errorf("label %d has no name", i)
		}
		if IsBlankSentinel(name) {
			return Taxonomy{}, fmt.Errorf("label %q collides with an unset sentinel", name)
		}
		if _, dup := seen[name]; dup {
			return Taxonomy{}, fmt.Errorf("duplicate label %q", name)
		}
		seen[name] = struct{}{}
	}
	if len(tax.Labels) == 0 {
		return Taxonomy{}, errors.New("no labels")
	}
	tax.Fallback = strings.TrimSpace(tax.Fallback)
	if tax.Fallback == "" {
		return Taxonomy{}, errors.New("fallback label required")
	}
	if _, ok := seen[tax.Fallback]; !ok {
		return Taxonomy{}, fmt.Errorf("fallback %q is not a label", tax.Fallback)
	}
	return tax, nil
}

// Names returns the label names in declaration order.
func (t Taxonomy) Names() []string {
	names := make([]string, len(t.Labels))
	for i, label := range t.Labels {
		names[i] = label.Name
	}
	return names
}

// Contains reports whether name is one of the labels (exact match).
func (t Taxonomy) Contains(name string) bool {
	for _, label := range t.Labels {
		if label.Name == name {
			return true
		}
	}
	return false
}

// blankSentinels are the representations of "no category yet" found in
// partitions written by earlier tools (pandas NaN export, Python None).
var blankSentinels = map[string]struct{}{
	"":     {},
	"nan":  {},
	"NaN":  {},
	"None": {},
	"null": {},
	"NA":   {},
}

// IsBlankSentinel reports whether the trimmed value means "unset".
func IsBlankSentinel(value string) bool {
	_, ok := blankSentinels[strings.TrimSpace(value)]
	return ok
}
