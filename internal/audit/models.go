package audit

import "time"

// Event is an immutable, append-only audit log record of an operator action.
//
// Invariants:
// - Events are never updated or deleted.
// - operator and ip capture are best-effort; do not block critical flows on audit failures.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// Operator is the authenticated operator causing the event.
	Operator string `json:"operator,omitempty" db:"operator"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeRefresh     EventType = "refresh_calls"
	EventTypeQuickRepair EventType = "quick_repair"
	EventTypeTokenIssued EventType = "token_issued"
)
