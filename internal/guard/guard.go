// Package guard sequences the guardrail layers into a single
// allow/block decision per request. Every call is a fresh, complete
// evaluation; there is no retry or partial state.
package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/kingmouse-ai/moat/internal/audit"
	"github.com/kingmouse-ai/moat/internal/catalog"
	"github.com/kingmouse-ai/moat/internal/codepattern"
	"github.com/kingmouse-ai/moat/internal/outputfilter"
	"github.com/kingmouse-ai/moat/internal/ratelimit"
	"github.com/kingmouse-ai/moat/internal/scan"
	"github.com/kingmouse-ai/moat/internal/storage"
	"go.uber.org/zap"
)

// RateLimitRiskScore is the fixed score assigned to rate-limit blocks.
const RateLimitRiskScore = 50

// RequestContext carries optional caller metadata into audit details.
type RequestContext struct {
	UserAgent string
	IPAddress string
	RequestID string
}

// Result is the orchestrator's decision. The caller acts on it
// immediately; it is never persisted.
type Result struct {
	Allowed             bool
	Blocked             bool
	Reason              string
	ReasonCode          ReasonCode
	Response            string // canned safe response; empty when allowed
	AuditEntry          *audit.Entry
	RequiresHumanReview bool
	RiskScore           int
}

// Guardrail is the single entry point consumed by the chat/completion
// pipeline and admin tooling.
type Guardrail struct {
	scanner  *scan.Scanner
	patterns *codepattern.Detector
	filter   *outputfilter.Filter
	limits   *ratelimit.Limiter
	auditLog *audit.Log
	logger   *zap.Logger
}

// New wires the guardrail layers together.
func New(
	scanner *scan.Scanner,
	patterns *codepattern.Detector,
	filter *outputfilter.Filter,
	limits *ratelimit.Limiter,
	auditLog *audit.Log,
	logger *zap.Logger,
) *Guardrail {
	return &Guardrail{
		scanner:  scanner,
		patterns: patterns,
		filter:   filter,
		limits:   limits,
		auditLog: auditLog,
		logger:   logger,
	}
}

// Check runs the short-circuiting pipeline over one customer request:
// rate limit, keyword scan, code patterns, review-only logging, allow.
// Terminal outcomes are exactly: allowed, blocked-by-rate-limit,
// blocked-by-keyword, blocked-by-code-pattern.
func (g *Guardrail) Check(ctx context.Context, customerID, input string, reqCtx RequestContext) Result {
	// Layer 1: code generation rate limit. The check itself spends one
	// unit of quota when under the limit.
	limit := g.limits.CheckCodeGeneration(ctx, customerID)
	if !limit.Allowed {
		g.recordCloneAttempt(ctx, customerID)
		entry := g.auditLog.LogSecurityEvent(ctx, customerID, audit.EventRateLimitExceeded,
			catalog.SeverityMedium,
			g.baseDetails(input, reqCtx, map[string]any{
				"track":    ratelimit.TrackCodeGeneration,
				"reset_at": limit.ResetAt,
			}),
			"request blocked by rate limit",
		)
		return Result{
			Blocked:    true,
			Reason:     "code generation rate limit exceeded",
			ReasonCode: ReasonRateLimited,
			Response:   ResponseFor(ReasonRateLimited),
			AuditEntry: entry,
			RiskScore:  RateLimitRiskScore,
		}
	}

	// Layer 2: keyword scan.
	scanRes := g.scanner.Scan(input)
	if scanRes.Blocked {
		g.recordCloneAttempt(ctx, customerID)
		entry := g.auditLog.LogSecurityEvent(ctx, customerID, audit.EventKeywordDetection,
			catalog.SeverityHigh,
			g.baseDetails(input, reqCtx, map[string]any{
				"matches":    matchSummaries(scanRes.Matches),
				"risk_score": scanRes.RiskScore,
			}),
			"request blocked, canned response returned",
		)
		return Result{
			Blocked:             true,
			Reason:              scanRes.Reason,
			ReasonCode:          ReasonKeywordBlocked,
			Response:            ResponseFor(ReasonKeywordBlocked),
			AuditEntry:          entry,
			RequiresHumanReview: true,
			RiskScore:           scanRes.RiskScore,
		}
	}

	// Layer 3: code pattern detection.
	patRes := g.patterns.Detect(input)
	if patRes.RequiresHumanApproval {
		g.recordCloneAttempt(ctx, customerID)
		entry := g.auditLog.LogSecurityEvent(ctx, customerID, audit.EventCodePatternDetection,
			catalog.SeverityCritical,
			g.baseDetails(input, reqCtx, map[string]any{
				"patterns":   patternNames(patRes.Patterns),
				"risk_score": scanRes.RiskScore,
			}),
			"request held for manual review",
		)
		return Result{
			Blocked:             true,
			Reason:              "restricted architectural patterns detected",
			ReasonCode:          ReasonPatternBlocked,
			Response:            ResponseFor(ReasonPatternBlocked),
			AuditEntry:          entry,
			RequiresHumanReview: true,
			RiskScore:           scanRes.RiskScore,
		}
	}

	// Layer 4: below-threshold signals are logged for visibility but do
	// not block.
	if scanRes.RequiresHumanReview {
		entry := g.auditLog.LogSecurityEvent(ctx, customerID, audit.EventKeywordDetection,
			catalog.SeverityLow,
			g.baseDetails(input, reqCtx, map[string]any{
				"matches":    matchSummaries(scanRes.Matches),
				"risk_score": scanRes.RiskScore,
			}),
			"allowed with review flag",
		)
		return Result{
			Allowed:             true,
			AuditEntry:          entry,
			RequiresHumanReview: true,
			RiskScore:           scanRes.RiskScore,
		}
	}
	if patRes.Detected {
		entry := g.auditLog.LogSecurityEvent(ctx, customerID, audit.EventHumanReviewRequired,
			catalog.SeverityLow,
			g.baseDetails(input, reqCtx, map[string]any{
				"patterns": patternNames(patRes.Patterns),
			}),
			"allowed, patterns below approval threshold",
		)
		return Result{
			Allowed:             true,
			AuditEntry:          entry,
			RequiresHumanReview: true,
			RiskScore:           scanRes.RiskScore,
		}
	}

	return Result{Allowed: true, RiskScore: scanRes.RiskScore}
}

// FilterOutput redacts infrastructure detail from AI-generated output
// before it reaches the customer, auditing any redaction.
func (g *Guardrail) FilterOutput(ctx context.Context, customerID, output string) outputfilter.Result {
	res := g.filter.Apply(output)
	if res.Filtered {
		g.auditLog.LogSecurityEvent(ctx, customerID, audit.EventBlockedRequest,
			catalog.SeverityMedium,
			map[string]any{
				"redactions":      res.Redactions,
				"original_length": res.OriginalLength,
				"filtered_length": res.FilteredLength,
			},
			"output redacted before delivery",
		)
	}
	return res
}

// IsCustomerFlagged exposes the repeat-offender flag to callers.
func (g *Guardrail) IsCustomerFlagged(ctx context.Context, customerID string) bool {
	return g.limits.IsCustomerFlagged(ctx, customerID)
}

// recordCloneAttempt feeds the clone-attempt track and audits the
// moment a customer crosses the repeat-offender threshold.
func (g *Guardrail) recordCloneAttempt(ctx context.Context, customerID string) {
	attempt := g.limits.RecordCloneAttempt(ctx, customerID)
	if attempt.JustFlagged {
		g.auditLog.LogSecurityEvent(ctx, customerID, audit.EventCloneAttempt,
			catalog.SeverityCritical,
			map[string]any{"attempts_in_window": attempt.Count},
			"customer flagged as repeat offender",
		)
		g.logger.Warn("customer flagged as repeat offender",
			zap.String("customer_id", customerID),
			zap.Int("attempts", attempt.Count),
		)
	}
}

// baseDetails builds the shared audit detail fields. Raw input is never
// stored: only a truncated preview and a hash.
func (g *Guardrail) baseDetails(input string, reqCtx RequestContext, extra map[string]any) map[string]any {
	hash := sha256.Sum256([]byte(input))
	details := map[string]any{
		"input_preview": storage.TruncateInput(input, storage.InputPreviewLength),
		"input_hash":    hex.EncodeToString(hash[:]),
	}
	if reqCtx.RequestID != "" {
		details["request_id"] = reqCtx.RequestID
	}
	if reqCtx.UserAgent != "" {
		details["user_agent"] = reqCtx.UserAgent
	}
	if reqCtx.IPAddress != "" {
		details["ip_address"] = reqCtx.IPAddress
	}
	for k, v := range extra {
		details[k] = v
	}
	return details
}

func matchSummaries(matches []scan.Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Keyword+" ("+m.Severity.String()+")")
	}
	return out
}

func patternNames(patterns []catalog.CodePattern) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, p.Name)
	}
	return out
}
