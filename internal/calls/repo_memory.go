package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory call store for tests and early development.
// It mirrors the Postgres repository's semantics: id-keyed upsert, the
// positive-duration guard, and half-open range listing.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]CallRecord
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]CallRecord{}}
}

func (r *MemoryRepo) Upsert(ctx context.Context, c CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upsertLocked(c)
	return nil
}

func (r *MemoryRepo) UpsertBatch(ctx context.Context, records []CallRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range records {
		r.upsertLocked(c)
	}
	return len(records), nil
}

func (r *MemoryRepo) upsertLocked(c CallRecord) {
	if c.StartedAt.IsZero() {
		c.StartedAt = c.CreatedAt
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now().UTC()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if prev, ok := r.rows[c.ID]; ok {
		if c.DurationSeconds <= 0 {
			c.DurationSeconds = prev.DurationSeconds
		}
		c.CreatedAt = prev.CreatedAt
	}
	r.rows[c.ID] = c
}

func (r *MemoryRepo) ListRange(ctx context.Context, from, to time.Time) ([]CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRecord, 0)
	for _, c := range r.rows {
		if c.StartedAt.Before(from) || !c.StartedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) Stats(ctx context.Context) (StoreStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := StoreStats{Rows: len(r.rows)}
	for _, c := range r.rows {
		day := c.StartedAt.Format("2006-01-02")
		if s.MinDate == "" || day < s.MinDate {
			s.MinDate = day
		}
		if s.MaxDate == "" || day > s.MaxDate {
			s.MaxDate = day
		}
	}
	return s, nil
}

func (r *MemoryRepo) DailyCounts(ctx context.Context, limit int) ([]DailyCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	type agg struct {
		calls int
		secs  int
	}
	byDay := map[string]*agg{}
	for _, c := range r.rows {
		day := c.StartedAt.Format("2006-01-02")
		a := byDay[day]
		if a == nil {
			a = &agg{}
			byDay[day] = a
		}
		a.calls++
		a.secs += c.DurationSeconds
	}
	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	if limit > 0 && len(days) > limit {
		days = days[:limit]
	}
	out := make([]DailyCount, 0, len(days))
	for _, d := range days {
		a := byDay[d]
		out = append(out, DailyCount{Day: d, Calls: a.calls, AvgSeconds: float64(a.secs) / float64(a.calls)})
	}
	return out, nil
}

func (r *MemoryRepo) FirstSeenByCustomer(ctx context.Context) (map[string]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]time.Time{}
	for _, c := range r.rows {
		phone := c.CustomerPhoneNumber
		if phone == "" {
			continue
		}
		if first, ok := out[phone]; !ok || c.StartedAt.Before(first) {
			out[phone] = c.StartedAt
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListMissingAgent(ctx context.Context) ([]CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRecord, 0)
	for _, c := range r.rows {
		if c.AgentName == "" && c.Tags != "" {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) SetAgentName(ctx context.Context, id, agentName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return ErrNotFound
	}
	c.AgentName = agentName
	r.rows[id] = c
	return nil
}
