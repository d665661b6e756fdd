package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Operator: "alex"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogOperatorAction(context.Background(), EventTypeRefresh, "alex", "1.2.3.4", "refreshed last 7 days", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].Type != EventTypeRefresh {
		t.Fatalf("expected refresh_calls")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned")
	}
}

func TestService_RecentNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	_ = svc.LogOperatorAction(context.Background(), EventTypeRefresh, "alex", "", "first", "")
	_ = svc.LogOperatorAction(context.Background(), EventTypeQuickRepair, "alex", "", "second", "")

	evs, err := svc.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(evs) != 2 || evs[0].Message != "second" {
		t.Fatalf("expected newest first, got %+v", evs)
	}
}
