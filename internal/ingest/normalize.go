package ingest

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"call-insights/internal/calls"
)

// The provider is inconsistent about field names and value shapes, so
// normalization is deliberately liberal: several duration spellings, tags as
// lists, objects, CSV or JSON strings, and agent names hidden in "Agent: X"
// tags.

var (
	durationHMS   = regexp.MustCompile(`^\s*(\d{1,2}):([0-5]?\d):([0-5]?\d)\s*$`)
	durationMS    = regexp.MustCompile(`^\s*([0-5]?\d):([0-5]?\d)\s*$`)
	durationHuman = regexp.MustCompile(`(?i)^\s*(?:(\d+)\s*h)?\s*(?:(\d+)\s*m(?:in)?)?\s*(?:(\d+)\s*s)?\s*$`)
	agentTag      = regexp.MustCompile(`(?i)^\s*agent:\s*([^.,]+)\.?\s*$`)
)

// parseDurationSeconds accepts numbers, numeric strings, "H:MM:SS", "MM:SS"
// and human strings like "1h 2m 3s". Unparseable input is 0, never an error.
func parseDurationSeconds(v any) int {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return clampNonNegative(int(x))
	case int:
		return clampNonNegative(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return clampNonNegative(int(f))
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		if n, err := strconv.Atoi(s); err == nil {
			return clampNonNegative(n)
		}
		if m := durationHMS.FindStringSubmatch(s); m != nil {
			h, _ := strconv.Atoi(m[1])
			mm, _ := strconv.Atoi(m[2])
			ss, _ := strconv.Atoi(m[3])
			return h*3600 + mm*60 + ss
		}
		if m := durationMS.FindStringSubmatch(s); m != nil {
			mm, _ := strconv.Atoi(m[1])
			ss, _ := strconv.Atoi(m[2])
			return mm*60 + ss
		}
		if m := durationHuman.FindStringSubmatch(s); m != nil && (m[1] != "" || m[2] != "" || m[3] != "") {
			h, _ := strconv.Atoi(zeroIfEmpty(m[1]))
			mm, _ := strconv.Atoi(zeroIfEmpty(m[2]))
			ss, _ := strconv.Atoi(zeroIfEmpty(m[3]))
			return h*3600 + mm*60 + ss
		}
	}
	return 0
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// normalizeTags flattens tags to a single comma-separated string.
// Accepts: []string, []map (name/label/value keys), a JSON array string, or
// a plain CSV string.
func normalizeTags(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []any:
		return joinTagList(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return ""
		}
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			return joinTagList(arr)
		}
		return s
	}
	return ""
}

func joinTagList(items []any) string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		var name string
		switch t := it.(type) {
		case string:
			name = strings.TrimSpace(t)
		case map[string]any:
			for _, k := range []string{"name", "label", "value"} {
				if s, ok := t[k].(string); ok && strings.TrimSpace(s) != "" {
					name = strings.TrimSpace(s)
					break
				}
			}
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return strings.Join(out, ",")
}

// AgentFromTags extracts the agent name from an "Agent: Taylor" (trailing
// period optional) tag inside the CSV tag text.
func AgentFromTags(tagsCSV string) string {
	for _, part := range strings.Split(tagsCSV, ",") {
		if m := agentTag.FindStringSubmatch(part); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// agentFromEmail turns "taylor.smith@clinic.com" into "Taylor Smith".
func agentFromEmail(email string) string {
	local, _, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return ""
	}
	parts := strings.FieldsFunc(local, func(r rune) bool { return r == '.' || r == '_' || r == '-' })
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func asString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func asInt(m map[string]any, keys ...string) int {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if n := parseDurationSeconds(v); n > 0 {
				return n
			}
		}
	}
	return 0
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case float64:
		return x != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true", "yes", "y":
			return true, true
		case "0", "false", "no", "n":
			return false, true
		}
	}
	return false, false
}

// deriveStatus normalizes the provider's status spellings, falling back to an
// explicit answered/voicemail flag pair.
func deriveStatus(m map[string]any) calls.CallStatus {
	switch strings.ToLower(asString(m, "call_status")) {
	case "answered", "completed":
		return calls.CallStatusAnswered
	case "missed":
		return calls.CallStatusMissed
	case "voicemail":
		return calls.CallStatusVoicemail
	case "no-answer", "no_answer":
		return calls.CallStatusNoAnswer
	}
	if answered, ok := asBool(m["answered"]); ok && answered {
		return calls.CallStatusAnswered
	}
	if voicemail, ok := asBool(m["voicemail"]); ok && voicemail {
		return calls.CallStatusVoicemail
	}
	return calls.CallStatusMissed
}

// FromPayload maps one provider-style call object to a CallRecord.
// An empty ID means the payload is unkeyable; callers decide whether that is
// a skip (bulk ingest) or a rejection (webhook).
func FromPayload(m map[string]any, now time.Time) calls.CallRecord {
	tags := normalizeTags(m["tags"])

	agent := asString(m, "agent_name", "agent")
	if agent == "" {
		agent = AgentFromTags(tags)
	}
	if agent == "" {
		agent = agentFromEmail(asString(m, "agent_email"))
	}

	callType := calls.CallType(asString(m, "direction", "call_type"))
	if callType == "" {
		callType = calls.CallTypeInbound
	}

	startedAt := parseTime(m["started_at"])
	if startedAt.IsZero() {
		startedAt = parseTime(m["start_time"])
	}
	if startedAt.IsZero() {
		startedAt = parseTime(m["created_at"])
	}
	if startedAt.IsZero() {
		startedAt = now
	}

	return calls.CallRecord{
		ID:                  asString(m, "id", "call_id"),
		CompanyID:           asString(m, "company_id"),
		CompanyName:         asString(m, "company_name"),
		SourceName:          asString(m, "source_name", "source"),
		TrackingNumber:      asString(m, "tracking_number", "tracking_phone_number"),
		CustomerPhoneNumber: asString(m, "customer_phone_number"),
		AgentName:           agent,
		Type:                callType,
		Status:              deriveStatus(m),
		DurationSeconds:     asInt(m, "duration_seconds", "duration_in_seconds", "duration"),
		RingTimeSeconds:     asInt(m, "ring_time_seconds"),
		HoldTimeSeconds:     asInt(m, "hold_time_seconds"),
		Tags:                tags,
		RecordingURL:        asString(m, "recording_url", "recording"),
		Transcript:          asString(m, "transcript"),
		Summary:             asString(m, "summary"),
		StartedAt:           startedAt,
		CreatedAt:           now,
	}
}
