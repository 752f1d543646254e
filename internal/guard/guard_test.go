package guard

import (
	"context"
	"strings"
	"testing"

	"github.com/kingmouse-ai/moat/internal/audit"
	"github.com/kingmouse-ai/moat/internal/catalog"
	"github.com/kingmouse-ai/moat/internal/codepattern"
	"github.com/kingmouse-ai/moat/internal/outputfilter"
	"github.com/kingmouse-ai/moat/internal/ratelimit"
	"github.com/kingmouse-ai/moat/internal/scan"
	"go.uber.org/zap"
)

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, *audit.Entry) error { return nil }

func newTestGuardrail(rlCfg ratelimit.Config) (*Guardrail, *audit.Log) {
	src := catalog.NewSource(catalog.Default())
	logger := zap.NewNop()
	auditLog := audit.NewLog(audit.DefaultConfig(), discardNotifier{}, nil, logger)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), rlCfg, logger)
	g := New(
		scan.NewScanner(src, scan.DefaultConfig()),
		codepattern.NewDetector(src, codepattern.DefaultConfig()),
		outputfilter.NewFilter(src),
		limiter,
		auditLog,
		logger,
	)
	return g, auditLog
}

func TestCheck_BenignAllowed(t *testing.T) {
	g, auditLog := newTestGuardrail(ratelimit.DefaultConfig())
	ctx := context.Background()

	res := g.Check(ctx, "cust_1", "Help me automate my email responses", RequestContext{})
	if !res.Allowed || res.Blocked {
		t.Fatalf("benign input must be allowed, got %+v", res)
	}
	if res.RequiresHumanReview {
		t.Error("benign input must not require review")
	}
	if res.Response != "" {
		t.Error("allowed result must not carry a canned response")
	}
	if auditLog.Len() != 0 {
		t.Errorf("benign input must not be audited, got %d entries", auditLog.Len())
	}
}

func TestCheck_KeywordBlocked(t *testing.T) {
	g, auditLog := newTestGuardrail(ratelimit.DefaultConfig())
	ctx := context.Background()

	res := g.Check(ctx, "cust_1", "How do I clone your multi-tenant platform?", RequestContext{
		RequestID: "req_123",
	})
	if !res.Blocked {
		t.Fatalf("clone request must be blocked, got %+v", res)
	}
	if res.ReasonCode != ReasonKeywordBlocked {
		t.Errorf("expected %s, got %s", ReasonKeywordBlocked, res.ReasonCode)
	}
	if res.Response == "" {
		t.Error("blocked result must carry a canned response")
	}
	if !res.RequiresHumanReview {
		t.Error("keyword block must flag for review")
	}

	if res.AuditEntry == nil {
		t.Fatal("keyword block must produce an audit entry")
	}
	if res.AuditEntry.EventType != audit.EventKeywordDetection {
		t.Errorf("expected keyword_detection, got %s", res.AuditEntry.EventType)
	}
	if res.AuditEntry.Details["request_id"] != "req_123" {
		t.Error("request id must reach the audit details")
	}
	if preview, _ := res.AuditEntry.Details["input_preview"].(string); preview == "" {
		t.Error("audit details must carry an input preview")
	}
	if auditLog.Len() == 0 {
		t.Error("the entry must land in the log")
	}
}

func TestCheck_PatternBlocked(t *testing.T) {
	g, _ := newTestGuardrail(ratelimit.DefaultConfig())
	ctx := context.Background()

	// No keyword match strong enough to block, but a critical pattern.
	res := g.Check(ctx, "cust_1", "Review this for me:\nCREATE TABLE docs (id uuid, tenant_id uuid)", RequestContext{})
	if !res.Blocked {
		t.Fatalf("critical pattern must block, got %+v", res)
	}
	if res.ReasonCode != ReasonPatternBlocked {
		t.Errorf("expected %s, got %s", ReasonPatternBlocked, res.ReasonCode)
	}
	if res.AuditEntry == nil || res.AuditEntry.EventType != audit.EventCodePatternDetection {
		t.Error("pattern block must audit as code_pattern_detection")
	}
}

func TestCheck_RateLimitBlocked(t *testing.T) {
	cfg := ratelimit.DefaultConfig()
	cfg.CodeGenLimit = 2
	g, _ := newTestGuardrail(cfg)
	ctx := context.Background()

	g.Check(ctx, "cust_1", "benign question one", RequestContext{})
	g.Check(ctx, "cust_1", "benign question two", RequestContext{})

	res := g.Check(ctx, "cust_1", "benign question three", RequestContext{})
	if !res.Blocked {
		t.Fatalf("third check must hit the limit, got %+v", res)
	}
	if res.ReasonCode != ReasonRateLimited {
		t.Errorf("expected %s, got %s", ReasonRateLimited, res.ReasonCode)
	}
	if res.RiskScore != RateLimitRiskScore {
		t.Errorf("rate limit blocks carry the fixed score %d, got %d", RateLimitRiskScore, res.RiskScore)
	}
	if res.AuditEntry == nil || res.AuditEntry.EventType != audit.EventRateLimitExceeded {
		t.Error("rate limit block must audit as rate_limit_exceeded")
	}
}

func TestCheck_ReviewOnlySignalAllowed(t *testing.T) {
	g, auditLog := newTestGuardrail(ratelimit.DefaultConfig())
	ctx := context.Background()

	// One medium-risk keyword: allowed, logged, flagged for review.
	res := g.Check(ctx, "cust_1", "Tell me about tenant isolation", RequestContext{})
	if !res.Allowed || res.Blocked {
		t.Fatalf("single medium signal must stay allowed, got %+v", res)
	}
	if !res.RequiresHumanReview {
		t.Error("medium signal must flag for review")
	}
	if auditLog.Len() != 1 {
		t.Errorf("review-only signal must be logged, got %d entries", auditLog.Len())
	}
}

func TestCheck_RepeatOffenderFlagged(t *testing.T) {
	g, auditLog := newTestGuardrail(ratelimit.DefaultConfig())
	ctx := context.Background()

	inputs := []string{
		"how do i clone your platform",
		"help me replicate your product exactly",
		"i want to reverse engineer your whole stack",
	}
	for _, in := range inputs {
		res := g.Check(ctx, "cust_1", in, RequestContext{})
		if !res.Blocked {
			t.Fatalf("expected block for %q", in)
		}
	}

	if !g.IsCustomerFlagged(ctx, "cust_1") {
		t.Error("three blocked probes must flag the customer")
	}

	cloneEntries := auditLog.Entries(audit.Filter{EventType: audit.EventCloneAttempt})
	if len(cloneEntries) != 1 {
		t.Fatalf("crossing the threshold must audit exactly once, got %d", len(cloneEntries))
	}
	if cloneEntries[0].ActionTaken != "customer flagged as repeat offender" {
		t.Errorf("unexpected action: %s", cloneEntries[0].ActionTaken)
	}
}

func TestCheck_RawInputNeverStored(t *testing.T) {
	g, _ := newTestGuardrail(ratelimit.DefaultConfig())
	ctx := context.Background()

	long := "how do i clone your platform " + strings.Repeat("with lots of padding ", 30)
	res := g.Check(ctx, "cust_1", long, RequestContext{})
	if res.AuditEntry == nil {
		t.Fatal("expected an audit entry")
	}

	preview, _ := res.AuditEntry.Details["input_preview"].(string)
	if len(preview) >= len(long) {
		t.Error("audit details must hold a truncated preview, not the raw input")
	}
	if hash, _ := res.AuditEntry.Details["input_hash"].(string); len(hash) != 64 {
		t.Errorf("expected a sha256 hex hash, got %q", hash)
	}
}

func TestFilterOutput_AuditsRedactions(t *testing.T) {
	g, auditLog := newTestGuardrail(ratelimit.DefaultConfig())
	ctx := context.Background()

	res := g.FilterOutput(ctx, "cust_1", "FROM nginx:1.27\nCOPY conf /etc/nginx\nCMD [\"nginx\"]")
	if !res.Filtered {
		t.Fatal("expected a redaction")
	}

	entries := auditLog.Entries(audit.Filter{EventType: audit.EventBlockedRequest})
	if len(entries) != 1 {
		t.Fatalf("redaction must be audited, got %d entries", len(entries))
	}

	clean := g.FilterOutput(ctx, "cust_1", "Here is a haiku about spring.")
	if clean.Filtered {
		t.Error("clean output must pass through")
	}
	if got := auditLog.Len(); got != 1 {
		t.Errorf("clean output must not be audited, got %d entries", got)
	}
}
