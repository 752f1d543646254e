// Package scan implements the keyword layer of the guardrail pipeline:
// weighted phrase tiers plus keyword-combination rules over free text.
package scan

import (
	"fmt"
	"strings"

	"github.com/kingmouse-ai/moat/internal/catalog"
)

// Match is a single keyword or combination hit.
type Match struct {
	Keyword  string
	Position int
	Severity catalog.Severity
}

// Result is the outcome of one scan. Ephemeral; never persisted.
type Result struct {
	Blocked             bool
	Reason              string
	Matches             []Match
	RiskScore           int
	RequiresHumanReview bool
}

// Config holds the scoring weights and decision thresholds.
type Config struct {
	HighRiskScore     int // per high-risk phrase hit
	MediumRiskScore   int // per medium-risk phrase hit
	CombinationFactor int // multiplied by each combination's weight
	ContextFactor     int // multiplied by the context word count
	MinContextWords   int // context escalation kicks in at this count
	BlockScore        int // riskScore at or above this blocks
	ReviewScore       int // riskScore at or above this flags for review
}

// DefaultConfig returns the shipped thresholds.
func DefaultConfig() Config {
	return Config{
		HighRiskScore:     10,
		MediumRiskScore:   5,
		CombinationFactor: 3,
		ContextFactor:     2,
		MinContextWords:   2,
		BlockScore:        15,
		ReviewScore:       8,
	}
}

// Scanner matches free text against the active keyword catalog.
// Stateless and customer-independent; safe for concurrent use.
type Scanner struct {
	catalogs *catalog.Source
	cfg      Config
}

// NewScanner creates a scanner reading rules from src.
func NewScanner(src *catalog.Source, cfg Config) *Scanner {
	return &Scanner{catalogs: src, cfg: cfg}
}

// Scan searches text for clone-extraction signals and scores the result.
//
// Matching is literal, case-insensitive substring search. Leetspeak and
// homoglyph spellings are deliberately not normalized here; the code
// pattern and rate limit layers cover persistent probing.
func (s *Scanner) Scan(text string) Result {
	kw := s.catalogs.Current().Keywords
	lower := strings.ToLower(text)

	var (
		matches     []Match
		riskScore   int
		anyCritical bool
		anyHigh     bool
	)

	for _, phrase := range kw.HighRisk {
		if idx := strings.Index(lower, phrase); idx >= 0 {
			matches = append(matches, Match{Keyword: phrase, Position: idx, Severity: catalog.SeverityCritical})
			riskScore += s.cfg.HighRiskScore
			anyCritical = true
		}
	}

	for _, phrase := range kw.MediumRisk {
		if idx := strings.Index(lower, phrase); idx >= 0 {
			matches = append(matches, Match{Keyword: phrase, Position: idx, Severity: catalog.SeverityHigh})
			riskScore += s.cfg.MediumRiskScore
			anyHigh = true
		}
	}

	for _, combo := range kw.Combinations {
		all := true
		first := -1
		for _, k := range combo.Keywords {
			idx := strings.Index(lower, k)
			if idx < 0 {
				all = false
				break
			}
			if first < 0 || idx < first {
				first = idx
			}
		}
		if !all {
			continue
		}
		matches = append(matches, Match{
			Keyword:  strings.Join(combo.Keywords, "+"),
			Position: first,
			Severity: catalog.SeverityHigh,
		})
		riskScore += combo.Weight * s.cfg.CombinationFactor
		anyHigh = true
	}

	// Generic intent words alone are harmless; alongside a real match
	// they escalate the score.
	if len(matches) > 0 {
		contextCount := 0
		for _, w := range kw.ContextWords {
			if strings.Contains(lower, w) {
				contextCount++
			}
		}
		if contextCount >= s.cfg.MinContextWords {
			riskScore += s.cfg.ContextFactor * contextCount
		}
	}

	blocked := len(matches) >= 2 || riskScore >= s.cfg.BlockScore || anyCritical

	reason := ""
	if blocked {
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Keyword)
		}
		reason = fmt.Sprintf("clone-signal keywords detected (risk %d): %s",
			riskScore, strings.Join(names, ", "))
	}

	return Result{
		Blocked:             blocked,
		Reason:              reason,
		Matches:             matches,
		RiskScore:           riskScore,
		RequiresHumanReview: riskScore >= s.cfg.ReviewScore || anyHigh,
	}
}
