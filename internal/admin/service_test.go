package admin

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"call-insights/internal/calls"
	"call-insights/internal/ingest"
)

type fakeFetcher struct {
	payloads  []map[string]any
	err       error
	from, to  time.Time
	companyID string
}

func (f *fakeFetcher) Configured() bool { return true }

func (f *fakeFetcher) FetchCalls(ctx context.Context, from, to time.Time, companyID string) ([]map[string]any, error) {
	f.from, f.to, f.companyID = from, to, companyID
	return f.payloads, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func fixedNow() func() time.Time {
	return func() time.Time { return time.Date(2026, 8, 20, 15, 0, 0, 0, time.UTC) }
}

func newTestService(f Fetcher, repo *calls.MemoryRepo) *Service {
	ing := ingest.NewService(repo).WithClock(fixedNow())
	return NewService(f, ing, repo, nil, discardLogger()).WithClock(fixedNow())
}

func TestRefreshCalls_WindowAndIngest(t *testing.T) {
	fetcher := &fakeFetcher{payloads: []map[string]any{
		{"id": "c1", "call_status": "answered", "duration": float64(60)},
		{"id": "c2", "call_status": "missed"},
	}}
	repo := calls.NewMemoryRepo()
	svc := newTestService(fetcher, repo)

	res, err := svc.RefreshCalls(context.Background(), 7, "CMP1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.From != "2026-08-14" || res.To != "2026-08-20" {
		t.Fatalf("unexpected window: %+v", res)
	}
	if fetcher.companyID != "CMP1" {
		t.Fatalf("company filter not passed through, got %q", fetcher.companyID)
	}
	if res.Fetched != 2 || res.Ingested != 2 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	stats, _ := repo.Stats(context.Background())
	if stats.Rows != 2 {
		t.Fatalf("expected 2 stored rows, got %d", stats.Rows)
	}
}

func TestRefreshCalls_EmptyWindowIsSuccess(t *testing.T) {
	svc := newTestService(&fakeFetcher{}, calls.NewMemoryRepo())
	res, err := svc.RefreshCalls(context.Background(), 3, "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Fetched != 0 || res.Ingested != 0 {
		t.Fatalf("unexpected counts: %+v", res)
	}
}

func TestRefreshCalls_FetchErrorPropagates(t *testing.T) {
	wantErr := errors.New("upstream down")
	svc := newTestService(&fakeFetcher{err: wantErr}, calls.NewMemoryRepo())
	if _, err := svc.RefreshCalls(context.Background(), 7, ""); !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestRefreshCalls_DaysDefaultsAndCap(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc := newTestService(fetcher, calls.NewMemoryRepo())

	if _, err := svc.RefreshCalls(context.Background(), 0, ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got := fetcher.from.Format("2006-01-02"); got != "2026-08-14" {
		t.Fatalf("expected 7-day default window start, got %s", got)
	}

	if _, err := svc.RefreshCalls(context.Background(), 10000, ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if fetcher.to.Sub(fetcher.from) > 366*24*time.Hour {
		t.Fatalf("window must be capped, got %s..%s", fetcher.from, fetcher.to)
	}
}

func TestQuickRepair(t *testing.T) {
	repo := calls.NewMemoryRepo()
	ctx := context.Background()
	seed := []calls.CallRecord{
		{ID: "c1", Status: calls.CallStatusAnswered, Tags: "New Patient,Agent: Taylor.", StartedAt: fixedNow()()},
		{ID: "c2", Status: calls.CallStatusMissed, Tags: "New Patient", StartedAt: fixedNow()()},
		{ID: "c3", AgentName: "Sam", Status: calls.CallStatusAnswered, StartedAt: fixedNow()()},
	}
	for _, c := range seed {
		if err := repo.Upsert(ctx, c); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	svc := newTestService(&fakeFetcher{}, repo)
	res, err := svc.QuickRepair(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Scanned != 2 || res.Repaired != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	got, _ := repo.Get(ctx, "c1")
	if got.AgentName != "Taylor" {
		t.Fatalf("expected repaired agent, got %q", got.AgentName)
	}
	got2, _ := repo.Get(ctx, "c2")
	if got2.AgentName != "" {
		t.Fatalf("untaggable row must stay empty, got %q", got2.AgentName)
	}
}

func TestDatesLimitDefaults(t *testing.T) {
	repo := calls.NewMemoryRepo()
	svc := newTestService(&fakeFetcher{}, repo)
	if _, err := svc.Dates(context.Background(), -1); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
