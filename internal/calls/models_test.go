package calls

import (
	"context"
	"testing"
	"time"
)

func TestCallStatusValuesAreNonEmpty(t *testing.T) {
	statuses := []CallStatus{
		CallStatusAnswered,
		CallStatusMissed,
		CallStatusVoicemail,
		CallStatusNoAnswer,
	}
	for _, s := range statuses {
		if s == "" {
			t.Fatalf("expected non-empty status")
		}
	}
}

func TestTagsContain_CaseInsensitiveSubstring(t *testing.T) {
	c := CallRecord{Tags: "New Patient,Appointment Booked"}
	if !c.TagsContain("appointment booked") {
		t.Fatalf("expected case-insensitive match")
	}
	// Substring semantics: "Booked" matches inside "Appointment Booked".
	if !c.TagsContain("Booked") {
		t.Fatalf("expected substring match")
	}
	if c.TagsContain("Spanish") {
		t.Fatalf("unexpected match")
	}
	if c.TagsContain("") {
		t.Fatalf("empty term must not match")
	}
}

func TestTagList_TrimsAndDropsEmpties(t *testing.T) {
	c := CallRecord{Tags: " New Patient , ,Booked"}
	got := c.TagList()
	if len(got) != 2 || got[0] != "New Patient" || got[1] != "Booked" {
		t.Fatalf("unexpected tag list: %v", got)
	}
	if (CallRecord{}).TagList() != nil {
		t.Fatalf("expected nil for empty tags")
	}
}

func TestHasCountableDuration(t *testing.T) {
	if !(CallRecord{Status: CallStatusAnswered, DurationSeconds: 1}).HasCountableDuration() {
		t.Fatalf("answered with duration must count")
	}
	if (CallRecord{Status: CallStatusAnswered, DurationSeconds: 0}).HasCountableDuration() {
		t.Fatalf("zero duration must not count")
	}
	if (CallRecord{Status: CallStatusMissed, DurationSeconds: 60}).HasCountableDuration() {
		t.Fatalf("missed calls must not count")
	}
}

func TestFormatHMS(t *testing.T) {
	cases := []struct {
		secs float64
		want string
	}{
		{0, "00:00:00"},
		{150, "00:02:30"},
		{170, "00:02:50"},
		{3661, "01:01:01"},
		{59.6, "00:01:00"},
	}
	for _, tc := range cases {
		if got := FormatHMS(tc.secs); got != tc.want {
			t.Fatalf("FormatHMS(%v) = %q, want %q", tc.secs, got, tc.want)
		}
	}
}

func TestMemoryRepo_UpsertIsIdempotent(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	rec := CallRecord{ID: "c1", AgentName: "Taylor", Status: CallStatusAnswered, DurationSeconds: 180, StartedAt: now}

	if err := repo.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rows, err := repo.ListRange(context.Background(), now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row after duplicate upsert, got %d", len(rows))
	}
	if rows[0].DurationSeconds != 180 {
		t.Fatalf("unexpected duration: %d", rows[0].DurationSeconds)
	}
}

func TestMemoryRepo_UpsertKeepsPositiveDuration(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	if err := repo.Upsert(context.Background(), CallRecord{ID: "c1", DurationSeconds: 120, Status: CallStatusAnswered, StartedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(context.Background(), CallRecord{ID: "c1", DurationSeconds: 0, Status: CallStatusAnswered, StartedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := repo.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DurationSeconds != 120 {
		t.Fatalf("zero duration clobbered stored value: %d", got.DurationSeconds)
	}
}

func TestMemoryRepo_ListRangeIsHalfOpen(t *testing.T) {
	repo := NewMemoryRepo()
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	_ = repo.Upsert(context.Background(), CallRecord{ID: "in", StartedAt: day.Add(5 * time.Hour)})
	_ = repo.Upsert(context.Background(), CallRecord{ID: "edge", StartedAt: day.AddDate(0, 0, 1)})

	rows, err := repo.ListRange(context.Background(), day, day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "in" {
		t.Fatalf("expected only the in-window row, got %+v", rows)
	}
}
