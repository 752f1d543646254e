package api

import "time"

// ErrorResp is the JSON error envelope for all endpoints.
type ErrorResp struct {
	Detail string `json:"detail"`
}

// CheckRequest is the body of POST /v1/guardrails/check.
type CheckRequest struct {
	Input   string        `json:"input"`
	Context *CheckContext `json:"context,omitempty"`
}

// CheckContext carries optional caller metadata into audit details.
type CheckContext struct {
	UserAgent string `json:"user_agent,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// CheckResponse is the guardrail decision returned to the caller.
type CheckResponse struct {
	Allowed             bool       `json:"allowed"`
	Blocked             bool       `json:"blocked"`
	Reason              string     `json:"reason,omitempty"`
	ReasonCode          string     `json:"reason_code,omitempty"`
	Response            string     `json:"response,omitempty"`
	RequiresHumanReview bool       `json:"requires_human_review"`
	RiskScore           int        `json:"risk_score"`
	RequestID           string     `json:"request_id"`
	AuditEntryID        string     `json:"audit_entry_id,omitempty"`
	LatencyMs           float64    `json:"latency_ms"`
	AuditTimestamp      *time.Time `json:"audit_timestamp,omitempty"`
}

// FilterRequest is the body of POST /v1/guardrails/filter-output.
type FilterRequest struct {
	Output string `json:"output"`
}

// FilterResponse describes what the output filter changed.
type FilterResponse struct {
	Filtered       bool     `json:"filtered"`
	OriginalLength int      `json:"original_length"`
	FilteredLength int      `json:"filtered_length"`
	Redactions     []string `json:"redactions"`
	SafeOutput     string   `json:"safe_output"`
}

// AuditEntryResp is one audit log entry in admin responses.
type AuditEntryResp struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	CustomerID    string         `json:"customer_id"`
	EventType     string         `json:"event_type"`
	Severity      string         `json:"severity"`
	Details       map[string]any `json:"details"`
	ActionTaken   string         `json:"action_taken"`
	AdminNotified bool           `json:"admin_notified"`
}

// AuditLogResp is the body of GET /api/admin/guardrails/audit-log.
type AuditLogResp struct {
	Entries []AuditEntryResp `json:"entries"`
	Total   int              `json:"total"`
}

// OffenderResp is one repeat offender with the operator triage fields.
// The risk classification is computed here, in the admin surface, not
// in the audit core.
type OffenderResp struct {
	CustomerID        string    `json:"customer_id"`
	Count             int       `json:"count"`
	LastAttempt       time.Time `json:"last_attempt"`
	RiskLevel         string    `json:"risk_level"`
	RecommendedAction string    `json:"recommended_action"`
	Flagged           bool      `json:"flagged"`
}

// OffendersResp is the body of GET /api/admin/guardrails/repeat-offenders.
type OffendersResp struct {
	Offenders []OffenderResp `json:"offenders"`
}

// CustomerResp is one customer in admin listings. The key hash never
// leaves the server; only the prefix is shown.
type CustomerResp struct {
	CustomerID string    `json:"customer_id"`
	Name       string    `json:"name"`
	KeyPrefix  string    `json:"key_prefix"`
	Flagged    bool      `json:"flagged"`
	CreatedAt  time.Time `json:"created_at"`
}

// CustomersResp is the body of GET /api/admin/guardrails/customers.
type CustomersResp struct {
	Customers []CustomerResp `json:"customers"`
}

// CreateCustomerRequest is the body of POST /api/admin/guardrails/customers.
type CreateCustomerRequest struct {
	Name string `json:"name"`
}

// CreateCustomerResponse returns the new customer and its API key.
// The key is shown exactly once.
type CreateCustomerResponse struct {
	CustomerID string    `json:"customer_id"`
	Name       string    `json:"name"`
	APIKey     string    `json:"api_key"`
	CreatedAt  time.Time `json:"created_at"`
}
