package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kingmouse-ai/moat/internal/guard"
	"github.com/kingmouse-ai/moat/internal/ratelimit"
)

// handleCheck implements POST /v1/guardrails/check.
// Auth middleware has already validated the Bearer token and injected
// the customer.
func (d *Dependencies) handleCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CheckRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Input == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "input is required"})
		return
	}

	customer := customerFromContext(r.Context())
	if customer == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing customer context"})
		return
	}

	reqCtx := guard.RequestContext{RequestID: uuid.New().String()}
	if req.Context != nil {
		reqCtx.UserAgent = req.Context.UserAgent
		reqCtx.IPAddress = req.Context.IPAddress
		if req.Context.RequestID != "" {
			reqCtx.RequestID = req.Context.RequestID
		}
	}

	result := d.Guard.Check(r.Context(), customer.CustomerID, req.Input, reqCtx)
	latencyMs := float64(time.Since(start)) / float64(time.Millisecond)

	outcome := "allowed"
	if result.Blocked {
		outcome = "blocked"
	}
	adminNotified := result.AuditEntry != nil && result.AuditEntry.AdminNotified
	d.Metrics.RecordCheck(outcome, string(result.ReasonCode), latencyMs, adminNotified)
	if result.ReasonCode == guard.ReasonRateLimited {
		d.Metrics.RecordRateLimitDenial(ratelimit.TrackCodeGeneration)
	}

	resp := CheckResponse{
		Allowed:             result.Allowed,
		Blocked:             result.Blocked,
		Reason:              result.Reason,
		ReasonCode:          string(result.ReasonCode),
		Response:            result.Response,
		RequiresHumanReview: result.RequiresHumanReview,
		RiskScore:           result.RiskScore,
		RequestID:           reqCtx.RequestID,
		LatencyMs:           latencyMs,
	}
	if result.AuditEntry != nil {
		resp.AuditEntryID = result.AuditEntry.ID
		ts := result.AuditEntry.Timestamp
		resp.AuditTimestamp = &ts
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleFilterOutput implements POST /v1/guardrails/filter-output.
// Invoked separately, after AI generation, before the response reaches
// the customer.
func (d *Dependencies) handleFilterOutput(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Output == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "output is required"})
		return
	}

	customer := customerFromContext(r.Context())
	if customer == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing customer context"})
		return
	}

	res := d.Guard.FilterOutput(r.Context(), customer.CustomerID, req.Output)
	d.Metrics.RecordRedactions(res.Redactions)

	writeJSON(w, http.StatusOK, FilterResponse{
		Filtered:       res.Filtered,
		OriginalLength: res.OriginalLength,
		FilteredLength: res.FilteredLength,
		Redactions:     res.Redactions,
		SafeOutput:     res.SafeOutput,
	})
}
