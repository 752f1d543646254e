package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_Compiles(t *testing.T) {
	c := Default()

	if len(c.Keywords.HighRisk) == 0 || len(c.Keywords.MediumRisk) == 0 {
		t.Fatal("default catalog must ship keyword tiers")
	}
	for _, p := range c.CodePatterns {
		if len(p.Regexps()) != len(p.Patterns) {
			t.Errorf("pattern %s: expected %d compiled regexes, got %d",
				p.Name, len(p.Patterns), len(p.Regexps()))
		}
	}
	for _, r := range c.Redactions {
		if r.Regexp() == nil {
			t.Errorf("redaction %s is not compiled", r.Name)
		}
	}
	for _, r := range c.Rewordings {
		if r.Regexp() == nil {
			t.Errorf("rewording %q is not compiled", r.Pattern)
		}
	}
}

func TestDefault_CombinationWeightsInRange(t *testing.T) {
	for _, combo := range Default().Keywords.Combinations {
		if combo.Weight < 2 || combo.Weight > 4 {
			t.Errorf("combination %v: weight %d outside 2-4", combo.Keywords, combo.Weight)
		}
		if len(combo.Keywords) < 2 {
			t.Errorf("combination %v needs at least two keywords", combo.Keywords)
		}
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"low", SeverityLow},
		{"medium", SeverityMedium},
		{"HIGH", SeverityHigh},
		{" critical ", SeverityCritical},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if err != nil {
			t.Errorf("ParseSeverity(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseSeverity("severe"); err == nil {
		t.Error("unknown severity must error")
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !(SeverityLow < SeverityMedium && SeverityMedium < SeverityHigh && SeverityHigh < SeverityCritical) {
		t.Error("severity values must be ordered for threshold comparisons")
	}
}

func TestLoad_YAMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `
version: "test-1"
keywords:
  high_risk: ["clone"]
  medium_risk: ["orchestration"]
  combinations:
    - keywords: ["docker", "customer"]
      weight: 2
  context_words: ["build"]
code_patterns:
  - name: sample
    severity: high
    description: sample pattern
    patterns:
      - '(?i)sample\s+pattern'
redactions:
  - name: sample
    pattern: 'secret-\d+'
    token: "[SAMPLE_REDACTED]"
rewordings:
  - pattern: 'our stack'
    replacement: 'our systems'
disclaimer: "Details omitted."
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Version != "test-1" {
		t.Errorf("expected version test-1, got %s", c.Version)
	}
	if len(c.Keywords.HighRisk) != 1 || c.Keywords.HighRisk[0] != "clone" {
		t.Errorf("unexpected high risk tier: %v", c.Keywords.HighRisk)
	}
	if c.CodePatterns[0].Severity != SeverityHigh {
		t.Errorf("expected high severity, got %v", c.CodePatterns[0].Severity)
	}
	if !c.CodePatterns[0].Regexps()[0].MatchString("a SAMPLE pattern") {
		t.Error("loaded pattern must be compiled and case-insensitive")
	}
	if !c.Redactions[0].Regexp().MatchString("secret-42") {
		t.Error("loaded redaction must be compiled")
	}
}

func TestLoad_BadRegexRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `
code_patterns:
  - name: broken
    severity: high
    patterns: ['[unclosed']
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("a catalog with a broken regex must not load")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file must error")
	}
}
