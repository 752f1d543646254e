// Package audit keeps the append-only in-memory record of every
// security-relevant guardrail event, with debounced admin notification
// and an optional durable mirror.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kingmouse-ai/moat/internal/catalog"
	"github.com/kingmouse-ai/moat/internal/storage"
	"go.uber.org/zap"
)

// EventType classifies audit log entries.
type EventType string

const (
	EventCloneAttempt         EventType = "clone_attempt"
	EventKeywordDetection     EventType = "keyword_detection"
	EventCodePatternDetection EventType = "code_pattern_detection"
	EventRateLimitExceeded    EventType = "rate_limit_exceeded"
	EventHumanReviewRequired  EventType = "human_review_required"
	EventBlockedRequest       EventType = "blocked_request"
)

// Entry is one audit log record. Append-only: after creation nothing is
// mutated except AdminNotified, which is set synchronously at creation
// time before the entry is returned.
type Entry struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	CustomerID    string         `json:"customer_id"`
	EventType     EventType      `json:"event_type"`
	Severity      string         `json:"severity"`
	Details       map[string]any `json:"details"`
	ActionTaken   string         `json:"action_taken"`
	AdminNotified bool           `json:"admin_notified"`
}

// Filter narrows Entries queries. Zero-valued fields are ignored;
// populated fields are conjunctive.
type Filter struct {
	CustomerID string
	EventType  EventType
	Severity   string
	Since      time.Time
}

// Offender aggregates a customer's total audit entries.
type Offender struct {
	CustomerID  string    `json:"customer_id"`
	Count       int       `json:"count"`
	LastAttempt time.Time `json:"last_attempt"`
}

// Config holds the notification policy.
type Config struct {
	NotifyThreshold catalog.Severity // notify at or above this severity
	NotifyDebounce  time.Duration    // min gap between notifications per customer
}

// DefaultConfig returns the shipped notification policy: high severity
// and above, at most one notification per customer per 15 minutes.
func DefaultConfig() Config {
	return Config{
		NotifyThreshold: catalog.SeverityHigh,
		NotifyDebounce:  15 * time.Minute,
	}
}

// Log is the in-memory audit log. Entries accumulate for the process
// lifetime; the writer mirrors them durably when configured.
type Log struct {
	mu               sync.Mutex
	entries          []*Entry
	lastNotification map[string]time.Time

	cfg      Config
	notifier Notifier
	writer   storage.EventWriter // nil when no durable mirror is configured
	logger   *zap.Logger
	now      func() time.Time
}

// NewLog creates an empty audit log. writer may be nil.
func NewLog(cfg Config, notifier Notifier, writer storage.EventWriter, logger *zap.Logger) *Log {
	return &Log{
		lastNotification: make(map[string]time.Time),
		cfg:              cfg,
		notifier:         notifier,
		writer:           writer,
		logger:           logger,
		now:              time.Now,
	}
}

// LogSecurityEvent appends a new entry, decides whether to notify an
// administrator, and mirrors the entry to the durable writer. The
// returned entry is final: callers must not mutate it.
func (l *Log) LogSecurityEvent(ctx context.Context, customerID string, eventType EventType, severity catalog.Severity, details map[string]any, actionTaken string) *Entry {
	now := l.now()
	entry := &Entry{
		ID:          fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		Timestamp:   now,
		CustomerID:  customerID,
		EventType:   eventType,
		Severity:    severity.String(),
		Details:     details,
		ActionTaken: actionTaken,
	}

	l.mu.Lock()
	notify := l.shouldNotifyAdminLocked(customerID, severity, now)
	if notify {
		l.lastNotification[customerID] = now
		entry.AdminNotified = true
	}
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if notify {
		// Fire-and-forget: a broken notification channel must not fail
		// the surrounding request.
		if err := l.notifier.Notify(ctx, entry); err != nil {
			l.logger.Error("admin notification failed",
				zap.String("entry_id", entry.ID),
				zap.String("customer_id", customerID),
				zap.Error(err),
			)
		}
	}

	if l.writer != nil {
		l.writer.Write(toStorageEvent(entry))
	}

	return entry
}

// shouldNotifyAdminLocked applies the severity threshold and the
// per-customer debounce. Caller holds l.mu.
func (l *Log) shouldNotifyAdminLocked(customerID string, severity catalog.Severity, now time.Time) bool {
	if severity < l.cfg.NotifyThreshold {
		return false
	}
	last, ok := l.lastNotification[customerID]
	if ok && now.Sub(last) < l.cfg.NotifyDebounce {
		return false
	}
	return true
}

// Entries returns matching entries sorted newest-first.
func (l *Log) Entries(f Filter) []*Entry {
	l.mu.Lock()
	matched := make([]*Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if f.CustomerID != "" && e.CustomerID != f.CustomerID {
			continue
		}
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		if f.Severity != "" && e.Severity != f.Severity {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		matched = append(matched, e)
	}
	l.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	return matched
}

// RepeatOffenders aggregates the full log per customer and returns
// customers with at least minAttempts entries, sorted descending by
// count. Risk classification of the counts belongs to the caller.
func (l *Log) RepeatOffenders(minAttempts int) []Offender {
	l.mu.Lock()
	counts := make(map[string]*Offender)
	for _, e := range l.entries {
		o, ok := counts[e.CustomerID]
		if !ok {
			o = &Offender{CustomerID: e.CustomerID}
			counts[e.CustomerID] = o
		}
		o.Count++
		if e.Timestamp.After(o.LastAttempt) {
			o.LastAttempt = e.Timestamp
		}
	}
	l.mu.Unlock()

	offenders := make([]Offender, 0, len(counts))
	for _, o := range counts {
		if o.Count >= minAttempts {
			offenders = append(offenders, *o)
		}
	}
	sort.Slice(offenders, func(i, j int) bool {
		if offenders[i].Count != offenders[j].Count {
			return offenders[i].Count > offenders[j].Count
		}
		return offenders[i].CustomerID < offenders[j].CustomerID
	})
	return offenders
}

// Len returns the total number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func toStorageEvent(e *Entry) *storage.AuditEvent {
	detailsJSON, err := json.Marshal(e.Details)
	if err != nil {
		detailsJSON = []byte("{}")
	}
	requestID, _ := e.Details["request_id"].(string)
	return &storage.AuditEvent{
		ID:            e.ID,
		Timestamp:     e.Timestamp,
		CustomerID:    e.CustomerID,
		EventType:     string(e.EventType),
		Severity:      e.Severity,
		DetailsJSON:   string(detailsJSON),
		ActionTaken:   e.ActionTaken,
		AdminNotified: e.AdminNotified,
		RequestID:     requestID,
	}
}
