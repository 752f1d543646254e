// Package outputfilter redacts infrastructure-revealing content from
// AI-generated responses before they reach the customer.
package outputfilter

import (
	"strings"

	"github.com/kingmouse-ai/moat/internal/catalog"
)

// Result describes what the filter changed. The raw output is never
// retained beyond the call; callers should forward SafeOutput only.
type Result struct {
	Filtered       bool
	OriginalLength int
	FilteredLength int
	Redactions     []string
	SafeOutput     string
}

// Filter applies the redaction and rewording rules from the active
// catalog. Pure and stateless; safe for concurrent use.
type Filter struct {
	catalogs *catalog.Source
}

// NewFilter creates a filter reading rules from src.
func NewFilter(src *catalog.Source) *Filter {
	return &Filter{catalogs: src}
}

// Apply redacts infrastructure artifacts and rewords sensitive phrases.
//
// Redaction replaces matched spans with opaque marker tokens and records
// each distinct token. Rewording alters the output without being tracked
// as a redaction. If anything was redacted, a fixed disclaimer sentence
// is appended. Re-filtering already-redacted text is a no-op for the
// redaction pass: marker tokens match none of the rules.
func (f *Filter) Apply(output string) Result {
	c := f.catalogs.Current()
	safe := output

	var redactions []string
	seen := make(map[string]bool)

	for i := range c.Redactions {
		rule := &c.Redactions[i]
		if !rule.Regexp().MatchString(safe) {
			continue
		}
		safe = rule.Regexp().ReplaceAllString(safe, rule.Token)
		if !seen[rule.Token] {
			seen[rule.Token] = true
			redactions = append(redactions, rule.Token)
		}
	}

	for i := range c.Rewordings {
		rule := &c.Rewordings[i]
		safe = rule.Regexp().ReplaceAllString(safe, rule.Replacement)
	}

	if len(redactions) > 0 && c.Disclaimer != "" {
		safe = strings.TrimRight(safe, "\n ") + "\n\n" + c.Disclaimer
	}

	return Result{
		Filtered:       len(redactions) > 0,
		OriginalLength: len(output),
		FilteredLength: len(safe),
		Redactions:     redactions,
		SafeOutput:     safe,
	}
}
