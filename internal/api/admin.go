package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kingmouse-ai/moat/internal/audit"
	"go.uber.org/zap"
)

const defaultMinAttempts = 3

// handleAuditLog implements GET /api/admin/guardrails/audit-log.
// All query filters are optional and conjunctive.
func (d *Dependencies) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := audit.Filter{
		CustomerID: q.Get("customer_id"),
		EventType:  audit.EventType(q.Get("event_type")),
		Severity:   q.Get("severity"),
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "since must be RFC 3339"})
			return
		}
		f.Since = since
	}

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries := d.AuditLog.Entries(f)
	total := len(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}

	resp := AuditLogResp{Entries: make([]AuditEntryResp, 0, len(entries)), Total: total}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, AuditEntryResp{
			ID:            e.ID,
			Timestamp:     e.Timestamp,
			CustomerID:    e.CustomerID,
			EventType:     string(e.EventType),
			Severity:      e.Severity,
			Details:       e.Details,
			ActionTaken:   e.ActionTaken,
			AdminNotified: e.AdminNotified,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRepeatOffenders implements GET /api/admin/guardrails/repeat-offenders.
func (d *Dependencies) handleRepeatOffenders(w http.ResponseWriter, r *http.Request) {
	minAttempts := defaultMinAttempts
	if raw := r.URL.Query().Get("min_attempts"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "min_attempts must be a positive integer"})
			return
		}
		minAttempts = n
	}

	offenders := d.AuditLog.RepeatOffenders(minAttempts)
	resp := OffendersResp{Offenders: make([]OffenderResp, 0, len(offenders))}
	for _, o := range offenders {
		risk, action := classifyOffender(o.Count)
		resp.Offenders = append(resp.Offenders, OffenderResp{
			CustomerID:        o.CustomerID,
			Count:             o.Count,
			LastAttempt:       o.LastAttempt,
			RiskLevel:         risk,
			RecommendedAction: action,
			Flagged:           d.Guard.IsCustomerFlagged(r.Context(), o.CustomerID),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// classifyOffender maps an entry count to an operator triage level.
func classifyOffender(count int) (risk, action string) {
	switch {
	case count >= 10:
		return "critical", "suspend account pending review"
	case count >= 5:
		return "high", "manual identity verification"
	default:
		return "medium", "monitor activity"
	}
}

// handleListCustomers implements GET /api/admin/guardrails/customers.
func (d *Dependencies) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "customer store not configured"})
		return
	}

	customers, err := d.Store.ListCustomers(r.Context())
	if err != nil {
		d.Logger.Error("list customers failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "failed to list customers"})
		return
	}

	resp := CustomersResp{Customers: make([]CustomerResp, 0, len(customers))}
	for _, c := range customers {
		resp.Customers = append(resp.Customers, CustomerResp{
			CustomerID: c.ID,
			Name:       c.Name,
			KeyPrefix:  c.APIKeyPrefix,
			Flagged:    c.Flagged,
			CreatedAt:  c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFlagCustomer implements POST /api/admin/guardrails/customers/{id}/flag.
// Sets the durable repeat-offender bit directly, for manual escalation.
func (d *Dependencies) handleFlagCustomer(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "customer store not configured"})
		return
	}

	customerID := chi.URLParam(r, "id")
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "customer id is required"})
		return
	}

	if err := d.Store.MarkFlagged(r.Context(), customerID); err != nil {
		d.Logger.Error("flag customer failed", zap.String("customer_id", customerID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "failed to flag customer"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"customer_id": customerID, "status": "flagged"})
}

// handleCreateCustomer implements POST /api/admin/guardrails/customers.
// The plaintext API key appears in this response and nowhere else.
func (d *Dependencies) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "customer store not configured"})
		return
	}

	var req CreateCustomerRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "Invalid JSON body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name is required"})
		return
	}

	customer, apiKey, err := d.Store.CreateCustomer(r.Context(), req.Name)
	if err != nil {
		d.Logger.Error("create customer failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "failed to create customer"})
		return
	}

	writeJSON(w, http.StatusCreated, CreateCustomerResponse{
		CustomerID: customer.ID,
		Name:       customer.Name,
		APIKey:     apiKey,
		CreatedAt:  customer.CreatedAt,
	})
}
