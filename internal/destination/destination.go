// Package destination holds the static per-destination configuration: which
// traveler fields are required, how they are validated and how the portal's
// form fields are located.
package destination

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	dErrors "entrypass/pkg/domain-errors"
)

// Category groups fields for completion tracking.
type Category string

const (
	CategoryPassport     Category = "passport"
	CategoryPersonalInfo Category = "personalInfo"
	CategoryTravel       Category = "travel"
	CategoryFunds        Category = "funds"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryPassport, CategoryPersonalInfo, CategoryTravel, CategoryFunds}

// Format is a value shape checked by the validator.
type Format string

const (
	FormatText    Format = "text"
	FormatDate    Format = "date"
	FormatEmail   Format = "email"
	FormatCountry Format = "country"
)

// SelectorKind is one form-field matching heuristic.
type SelectorKind string

const (
	SelectorExactAttribute   SelectorKind = "exact_attribute"
	SelectorRelaxedAttribute SelectorKind = "relaxed_attribute"
	SelectorPlaceholder      SelectorKind = "placeholder"
	SelectorLabel            SelectorKind = "label"
)

// Selector is a heuristic plus the value it matches against.
type Selector struct {
	Kind  SelectorKind `yaml:"kind" json:"kind"`
	Value string       `yaml:"value" json:"value"`
}

// FieldRule describes one logical traveler field.
type FieldRule struct {
	Name      string   `yaml:"name"`
	Category  Category `yaml:"category"`
	Required  bool     `yaml:"required"`
	Format    Format   `yaml:"format"`
	Pattern   string   `yaml:"pattern"`
	MaxLength int      `yaml:"maxLength"`

	compiled *regexp.Regexp
}

// Matches reports whether v satisfies the rule's pattern (true when unset).
func (r FieldRule) Matches(v string) bool {
	return r.compiled == nil || r.compiled.MatchString(v)
}

// Config is the destination's static configuration.
type Config struct {
	ID               string                `yaml:"id"`
	Name             string                `yaml:"name"`
	PortalURL        string                `yaml:"portalUrl"`
	SubmitEndpoint   string                `yaml:"submitEndpoint"`
	TokenHeader      string                `yaml:"tokenHeader"`
	SubmissionWindow time.Duration         `yaml:"submissionWindow"`
	RequireFunds     bool                  `yaml:"requireFunds"`
	Fields           []FieldRule           `yaml:"fields"`
	Selectors        map[string][]Selector `yaml:"selectors"`
}

func (c *Config) compile() error {
	if c.ID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "destination id is required")
	}
	if c.TokenHeader == "" {
		c.TokenHeader = "X-Challenge-Token"
	}
	seen := make(map[string]struct{}, len(c.Fields))
	for i := range c.Fields {
		f := &c.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("destination %s: field %d has no name", c.ID, i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("destination %s: duplicate field %s", c.ID, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Format == "" {
			f.Format = FormatText
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return fmt.Errorf("destination %s: field %s pattern: %w", c.ID, f.Name, err)
			}
			f.compiled = re
		}
	}
	return nil
}

// Rule returns the rule for a logical field.
func (c Config) Rule(name string) (FieldRule, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldRule{}, false
}

// RequiredFields lists the names of required fields in declaration order.
func (c Config) RequiredFields() []string {
	var out []string
	for _, f := range c.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// SelectorsFor returns the configured heuristics for field, or the default
// ladder derived from the field name: exact attribute, relaxed attribute,
// placeholder substring, label text.
func (c Config) SelectorsFor(field string) []Selector {
	if s, ok := c.Selectors[field]; ok && len(s) > 0 {
		return s
	}
	return []Selector{
		{Kind: SelectorExactAttribute, Value: field},
		{Kind: SelectorRelaxedAttribute, Value: strings.ToLower(field)},
		{Kind: SelectorPlaceholder, Value: humanize(field)},
		{Kind: SelectorLabel, Value: humanize(field)},
	}
}

// humanize turns "passportNo" into "passport no".
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte(' ')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
