package catalog

import "testing"

func TestSource_ReplaceIsVisibleImmediately(t *testing.T) {
	src := NewSource(Default())

	if src.Current().Version != "2026-08" {
		t.Fatalf("unexpected initial version %s", src.Current().Version)
	}

	next := Default()
	next.Version = "next"
	next.Keywords.HighRisk = []string{"only this"}
	src.Replace(next)

	got := src.Current()
	if got.Version != "next" {
		t.Errorf("expected the replacement catalog, got %s", got.Version)
	}
	if len(got.Keywords.HighRisk) != 1 {
		t.Errorf("expected the replacement rules, got %v", got.Keywords.HighRisk)
	}
}
