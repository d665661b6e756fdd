package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"call-insights/internal/calls"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC) }
}

func TestParseDurationSeconds(t *testing.T) {
	cases := []struct {
		in   any
		want int
	}{
		{nil, 0},
		{float64(180), 180},
		{float64(-5), 0},
		{"180", 180},
		{"0:03:00", 180},
		{"02:05", 125},
		{"1h 2m 3s", 3723},
		{"2m 2s", 122},
		{"2m", 120},
		{"75s", 75},
		{"garbage", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := parseDurationSeconds(tc.in); got != tc.want {
			t.Fatalf("parseDurationSeconds(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTags(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"New Patient,Booked", "New Patient,Booked"},
		{[]any{"New Patient", " Booked "}, "New Patient,Booked"},
		{[]any{map[string]any{"name": "New Patient"}, map[string]any{"label": "Booked"}}, "New Patient,Booked"},
		{`["New Patient","Booked"]`, "New Patient,Booked"},
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := normalizeTags(tc.in); got != tc.want {
			t.Fatalf("normalizeTags(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAgentFromTags(t *testing.T) {
	if got := AgentFromTags("New Patient,Agent: Taylor."); got != "Taylor" {
		t.Fatalf("expected Taylor, got %q", got)
	}
	if got := AgentFromTags("agent:Sam"); got != "Sam" {
		t.Fatalf("expected Sam, got %q", got)
	}
	if got := AgentFromTags("New Patient"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestAgentFromEmail(t *testing.T) {
	rec := FromPayload(map[string]any{
		"id":          "CAL9",
		"agent_email": "taylor.smith@clinic.example",
	}, fixedClock()())
	if rec.AgentName != "Taylor Smith" {
		t.Fatalf("expected Taylor Smith, got %q", rec.AgentName)
	}
}

func TestFromPayload_DerivesStatusAndAgent(t *testing.T) {
	now := fixedClock()()
	rec := FromPayload(map[string]any{
		"id":       "CAL123",
		"answered": true,
		"duration": "2m 30s",
		"tags":     []any{"New Patient", "Agent: Taylor."},
	}, now)

	if rec.ID != "CAL123" {
		t.Fatalf("unexpected id %q", rec.ID)
	}
	if rec.Status != calls.CallStatusAnswered {
		t.Fatalf("expected answered, got %q", rec.Status)
	}
	if rec.DurationSeconds != 150 {
		t.Fatalf("expected 150s, got %d", rec.DurationSeconds)
	}
	if rec.AgentName != "Taylor" {
		t.Fatalf("agent must derive from tags, got %q", rec.AgentName)
	}
	if rec.Type != calls.CallTypeInbound {
		t.Fatalf("expected inbound default, got %q", rec.Type)
	}
	if !rec.StartedAt.Equal(now) {
		t.Fatalf("expected clock fallback for started_at")
	}
}

func TestFromPayload_ExplicitStatusWins(t *testing.T) {
	rec := FromPayload(map[string]any{
		"id":          "CAL1",
		"call_status": "voicemail",
		"answered":    true,
	}, fixedClock()())
	if rec.Status != calls.CallStatusVoicemail {
		t.Fatalf("explicit status must win, got %q", rec.Status)
	}
}

func TestIngestBatch_SkipsUnkeyedAndUpserts(t *testing.T) {
	repo := calls.NewMemoryRepo()
	svc := NewService(repo).WithClock(fixedClock())

	n, err := svc.IngestBatch(context.Background(), []map[string]any{
		{"id": "c1", "call_status": "answered", "duration": float64(60)},
		{"call_status": "missed"}, // no id: skipped
		{"id": "c2", "call_status": "missed"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 ingested, got %d", n)
	}
}

func TestIngestBatch_AllUnkeyedIsRejected(t *testing.T) {
	svc := NewService(calls.NewMemoryRepo()).WithClock(fixedClock())
	if _, err := svc.IngestBatch(context.Background(), []map[string]any{{"call_status": "missed"}}); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestIngestBatch_Idempotent(t *testing.T) {
	repo := calls.NewMemoryRepo()
	svc := NewService(repo).WithClock(fixedClock())
	payload := []map[string]any{{"id": "c1", "call_status": "answered", "duration": float64(60), "started_at": "2026-08-20T10:00:00Z"}}

	if _, err := svc.IngestBatch(context.Background(), payload); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	before, _ := repo.Get(context.Background(), "c1")

	if _, err := svc.IngestBatch(context.Background(), payload); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	after, _ := repo.Get(context.Background(), "c1")

	if before != after {
		t.Fatalf("repeated ingestion changed the row: %+v vs %+v", before, after)
	}
	stats, _ := repo.Stats(context.Background())
	if stats.Rows != 1 {
		t.Fatalf("expected 1 row, got %d", stats.Rows)
	}
}

func TestIngestWebhook_NestedCallAndMissingID(t *testing.T) {
	repo := calls.NewMemoryRepo()
	svc := NewService(repo).WithClock(fixedClock())

	rec, err := svc.IngestWebhook(context.Background(), map[string]any{
		"call": map[string]any{"id": "CALX", "call_status": "answered", "duration_seconds": float64(90)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rec.ID != "CALX" || rec.DurationSeconds != 90 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := svc.IngestWebhook(context.Background(), map[string]any{"call_status": "answered"}); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestIngestWebhook_ZeroDurationNeverClobbers(t *testing.T) {
	repo := calls.NewMemoryRepo()
	svc := NewService(repo).WithClock(fixedClock())

	if _, err := svc.IngestWebhook(context.Background(), map[string]any{"id": "CALX", "call_status": "answered", "duration": float64(120)}); err != nil {
		t.Fatalf("first event: %v", err)
	}
	// A late partial event without a final duration must not reset it.
	if _, err := svc.IngestWebhook(context.Background(), map[string]any{"id": "CALX", "call_status": "answered"}); err != nil {
		t.Fatalf("second event: %v", err)
	}
	got, err := repo.Get(context.Background(), "CALX")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DurationSeconds != 120 {
		t.Fatalf("expected duration preserved, got %d", got.DurationSeconds)
	}
}
