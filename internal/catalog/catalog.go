// Package catalog holds the detection rule tables as versioned data.
// The keyword tiers, code pattern regexes, and redaction rules are
// configuration, not code: detection logic is built against a Catalog
// snapshot so rules can be replaced without touching the detectors.
package catalog

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Severity ranks how strongly a rule hit suggests a clone attempt.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unspecified"
	}
}

// ParseSeverity converts a severity name to its enum value.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	case "critical":
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

// UnmarshalYAML decodes a severity from its string name.
func (s *Severity) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	sev, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// MarshalYAML encodes a severity as its string name.
func (s Severity) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// Combination is a set of keywords that is suspicious only when all of
// them appear together. Weight scales the risk contribution (2–4).
type Combination struct {
	Keywords []string `yaml:"keywords"`
	Weight   int      `yaml:"weight"`
}

// KeywordCatalog holds the three keyword tiers plus the generic context
// words used for escalation. All phrases are stored lowercase; matching
// is literal substring search over lowercased input.
type KeywordCatalog struct {
	HighRisk     []string      `yaml:"high_risk"`
	MediumRisk   []string      `yaml:"medium_risk"`
	Combinations []Combination `yaml:"combinations"`
	ContextWords []string      `yaml:"context_words"`
}

// CodePattern is a named architectural pattern with one or more regexes.
// The pattern counts as detected if any regex matches.
type CodePattern struct {
	Name        string   `yaml:"name"`
	Severity    Severity `yaml:"severity"`
	Description string   `yaml:"description"`
	Patterns    []string `yaml:"patterns"`

	compiled []*regexp.Regexp
}

// Regexps returns the compiled regexes for this pattern.
func (p *CodePattern) Regexps() []*regexp.Regexp {
	return p.compiled
}

// RedactionRule replaces matched spans with an opaque marker token.
type RedactionRule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Token   string `yaml:"token"`

	re *regexp.Regexp
}

// Regexp returns the compiled redaction regex.
func (r *RedactionRule) Regexp() *regexp.Regexp { return r.re }

// Rewording rewrites a sensitive phrase into neutral wording. Unlike
// redactions, rewordings are not tracked in FilterResult.Redactions.
type Rewording struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`

	re *regexp.Regexp
}

// Regexp returns the compiled rewording regex.
func (r *Rewording) Regexp() *regexp.Regexp { return r.re }

// Catalog is the full rule set consumed by the scanner, the code pattern
// detector, and the output filter.
type Catalog struct {
	Version      string          `yaml:"version"`
	Keywords     KeywordCatalog  `yaml:"keywords"`
	CodePatterns []CodePattern   `yaml:"code_patterns"`
	Redactions   []RedactionRule `yaml:"redactions"`
	Rewordings   []Rewording     `yaml:"rewordings"`
	Disclaimer   string          `yaml:"disclaimer"`
}

// Compile pre-compiles every regex in the catalog. Must be called once
// before the catalog is handed to detectors.
func (c *Catalog) Compile() error {
	for i := range c.CodePatterns {
		p := &c.CodePatterns[i]
		p.compiled = p.compiled[:0]
		for _, raw := range p.Patterns {
			re, err := regexp.Compile(raw)
			if err != nil {
				return fmt.Errorf("code pattern %q: %w", p.Name, err)
			}
			p.compiled = append(p.compiled, re)
		}
	}
	for i := range c.Redactions {
		r := &c.Redactions[i]
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("redaction %q: %w", r.Name, err)
		}
		r.re = re
	}
	for i := range c.Rewordings {
		r := &c.Rewordings[i]
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("rewording %q: %w", r.Pattern, err)
		}
		r.re = re
	}
	return nil
}

// Load reads a catalog from a YAML file and compiles it.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := c.Compile(); err != nil {
		return nil, fmt.Errorf("compile catalog %s: %w", path, err)
	}
	return &c, nil
}
