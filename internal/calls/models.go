package calls

import (
	"fmt"
	"strings"
	"time"
)

// CallRecord is one inbound/outbound phone call as normalized from the
// telephony analytics provider.
//
// ID is the provider-assigned identifier and the upsert key: a second
// ingestion of the same ID updates fields in place, never duplicates.
//
// Tags are stored as a single comma-separated string; filter matching is
// substring-based over that text, not parsed-set membership.
type CallRecord struct {
	ID        string `json:"id" db:"id"`
	CompanyID string `json:"company_id,omitempty" db:"company_id"`

	// CompanyName and SourceName are provider display fields kept for reporting.
	CompanyName string `json:"company_name,omitempty" db:"company_name"`
	SourceName  string `json:"source_name,omitempty" db:"source_name"`

	TrackingNumber      string `json:"tracking_number,omitempty" db:"tracking_number"`
	CustomerPhoneNumber string `json:"customer_phone_number,omitempty" db:"customer_phone_number"`

	AgentName string `json:"agent_name,omitempty" db:"agent_name"`

	Type   CallType   `json:"call_type" db:"call_type"`
	Status CallStatus `json:"call_status" db:"call_status"`

	// DurationSeconds is talk time in seconds. Values <= 0 exclude the row
	// from duration-based aggregates but not from volume metrics.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	RingTimeSeconds int `json:"ring_time_seconds,omitempty" db:"ring_time_seconds"`
	HoldTimeSeconds int `json:"hold_time_seconds,omitempty" db:"hold_time_seconds"`

	Tags string `json:"tags,omitempty" db:"tags"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`
	Transcript   string `json:"transcript,omitempty" db:"transcript"`
	Summary      string `json:"summary,omitempty" db:"summary"`

	// StartedAt positions the call in time-windowed and bucketed queries.
	StartedAt time.Time `json:"started_at" db:"started_at"`

	// CreatedAt is the ingestion time of the row.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CallStatus string

const (
	CallStatusAnswered  CallStatus = "answered"
	CallStatusMissed    CallStatus = "missed"
	CallStatusVoicemail CallStatus = "voicemail"
	CallStatusNoAnswer  CallStatus = "no_answer"
)

type CallType string

const (
	CallTypeInbound  CallType = "inbound"
	CallTypeOutbound CallType = "outbound"
)

// Answered reports whether the call counts toward answered metrics.
func (c CallRecord) Answered() bool {
	return c.Status == CallStatusAnswered
}

// HasCountableDuration gates inclusion in duration-based aggregates.
func (c CallRecord) HasCountableDuration() bool {
	return c.Answered() && c.DurationSeconds > 0
}

// TagList splits the stored CSV tag text into trimmed terms.
func (c CallRecord) TagList() []string {
	if strings.TrimSpace(c.Tags) == "" {
		return nil
	}
	parts := strings.Split(c.Tags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TagsContain reports whether the serialized tag text contains term,
// case-insensitively. This is deliberately substring matching (not set
// membership) to stay compatible with the upstream data.
func (c CallRecord) TagsContain(term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(c.Tags), strings.ToLower(term))
}

// FormatHMS renders a duration in seconds as "HH:MM:SS".
func FormatHMS(seconds float64) string {
	s := int(seconds + 0.5)
	if s < 0 {
		s = 0
	}
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
