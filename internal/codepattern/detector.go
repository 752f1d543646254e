// Package codepattern matches code, snippets, and prose against a
// catalog of named architectural patterns that describe how the
// platform itself is built.
package codepattern

import (
	"github.com/kingmouse-ai/moat/internal/catalog"
)

// Result is the outcome of one detection pass. Ephemeral.
type Result struct {
	Detected              bool
	Patterns              []catalog.CodePattern
	RequiresHumanApproval bool
}

// Config holds the approval thresholds.
type Config struct {
	CriticalForApproval int // detected critical patterns at or above this require approval
	HighForApproval     int // detected high-severity patterns at or above this require approval
}

// DefaultConfig returns the shipped thresholds: one critical pattern or
// two high-severity patterns force manual approval.
func DefaultConfig() Config {
	return Config{CriticalForApproval: 1, HighForApproval: 2}
}

// Detector evaluates the active code pattern catalog against text.
// Stateless; safe for concurrent use.
type Detector struct {
	catalogs *catalog.Source
	cfg      Config
}

// NewDetector creates a detector reading patterns from src.
func NewDetector(src *catalog.Source, cfg Config) *Detector {
	return &Detector{catalogs: src, cfg: cfg}
}

// Detect reports which catalog patterns match text. A pattern counts as
// detected when any of its regexes matches.
func (d *Detector) Detect(text string) Result {
	patterns := d.catalogs.Current().CodePatterns

	var (
		detected []catalog.CodePattern
		critical int
		high     int
	)

	for i := range patterns {
		p := &patterns[i]
		for _, re := range p.Regexps() {
			if re.MatchString(text) {
				detected = append(detected, *p)
				switch p.Severity {
				case catalog.SeverityCritical:
					critical++
				case catalog.SeverityHigh:
					high++
				}
				break
			}
		}
	}

	return Result{
		Detected: len(detected) > 0,
		Patterns: detected,
		RequiresHumanApproval: critical >= d.cfg.CriticalForApproval ||
			high >= d.cfg.HighForApproval,
	}
}
