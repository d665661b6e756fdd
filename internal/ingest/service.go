package ingest

import (
	"context"
	"errors"
	"time"

	"call-insights/internal/calls"
)

var (
	ErrMissingID  = errors.New("ingest: call id is required")
	ErrEmptyBatch = errors.New("ingest: no ingestable calls in payload")
)

// Store is the write surface the ingestion layer needs.
type Store interface {
	Upsert(ctx context.Context, c calls.CallRecord) error
	UpsertBatch(ctx context.Context, records []calls.CallRecord) (int, error)
}

// Service normalizes provider payloads into CallRecords and upserts them.
// Ingestion is idempotent: repeated delivery of the same call id converges
// to the same stored row. Unknown company or agent values are accepted as
// free text; there is no referential rejection.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the ingestion clock; for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IngestBatch upserts a bulk array of provider-style call objects.
// Objects without an id are skipped, not fatal; an entirely unkeyable batch
// is rejected so the caller can flag the payload.
func (s *Service) IngestBatch(ctx context.Context, payloads []map[string]any) (int, error) {
	records := make([]calls.CallRecord, 0, len(payloads))
	for _, p := range payloads {
		rec := FromPayload(p, s.now())
		if rec.ID == "" {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return 0, ErrEmptyBatch
	}
	return s.store.UpsertBatch(ctx, records)
}

// IngestWebhook upserts a single call-completed event. The payload may carry
// the call flat or nested under "call". A missing id is a rejection: without
// a key the upsert cannot be idempotent.
func (s *Service) IngestWebhook(ctx context.Context, payload map[string]any) (calls.CallRecord, error) {
	if nested, ok := payload["call"].(map[string]any); ok {
		payload = nested
	}
	rec := FromPayload(payload, s.now())
	if rec.ID == "" {
		return calls.CallRecord{}, ErrMissingID
	}
	if err := s.store.Upsert(ctx, rec); err != nil {
		return calls.CallRecord{}, err
	}
	return rec, nil
}
