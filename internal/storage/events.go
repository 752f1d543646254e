package storage

import "time"

// EventWriter is the interface for durably mirroring audit log entries.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *AuditEvent)
	Close()
}

// AuditEvent is the flattened, persistence-ready form of an audit log
// entry. Raw customer input never reaches storage: details carry only a
// truncated preview and a hash of the payload.
type AuditEvent struct {
	ID            string
	Timestamp     time.Time
	CustomerID    string
	EventType     string
	Severity      string
	DetailsJSON   string
	ActionTaken   string
	AdminNotified bool
	RequestID     string
}

// InputPreviewLength is the max chars of customer input kept in audit details.
const InputPreviewLength = 200

// TruncateInput returns the first N characters (runes) of customer input
// for audit details. It never splits a multi-byte UTF-8 character.
func TruncateInput(input string, maxLen int) string {
	runes := []rune(input)
	if len(runes) <= maxLen {
		return input
	}
	return string(runes[:maxLen])
}
