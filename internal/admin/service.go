package admin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"call-insights/internal/calls"
	"call-insights/internal/ingest"
	"call-insights/pkg/utils"
)

var (
	// ErrRefreshInProgress means another refresh holds the single-flight lock.
	ErrRefreshInProgress = errors.New("admin: a refresh is already running")
)

const (
	refreshLockKey = "call-insights:refresh:lock"
	refreshLockTTL = 10 * time.Minute
	maxRefreshDays = 366
)

// Fetcher pulls call payloads from the upstream provider.
type Fetcher interface {
	Configured() bool
	FetchCalls(ctx context.Context, from, to time.Time, companyID string) ([]map[string]any, error)
}

// Ingestor writes provider payloads into the call store.
type Ingestor interface {
	IngestBatch(ctx context.Context, payloads []map[string]any) (int, error)
}

// Store is the maintenance surface of the call repository.
type Store interface {
	Stats(ctx context.Context) (calls.StoreStats, error)
	DailyCounts(ctx context.Context, limit int) ([]calls.DailyCount, error)
	ListMissingAgent(ctx context.Context) ([]calls.CallRecord, error)
	SetAgentName(ctx context.Context, id, agentName string) error
}

// Service runs operator maintenance: provider refresh, agent repair and
// store inspection. It is deliberately thin; ingestion semantics live in
// the ingest package.
type Service struct {
	fetcher  Fetcher
	ingestor Ingestor
	store    Store
	rdb      *redis.Client
	log      *slog.Logger
	now      func() time.Time
}

func NewService(fetcher Fetcher, ingestor Ingestor, store Store, rdb *redis.Client, log *slog.Logger) *Service {
	return &Service{
		fetcher:  fetcher,
		ingestor: ingestor,
		store:    store,
		rdb:      rdb,
		log:      log.With("component", "admin"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock; for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type RefreshResult struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Fetched  int    `json:"fetched"`
	Ingested int    `json:"ingested"`
}

// RefreshCalls re-pulls the last `days` days (today inclusive) from the
// provider and upserts them; companyID optionally narrows the pull to one
// provider company. At most one refresh runs at a time across all
// instances; concurrent callers get ErrRefreshInProgress instead of queuing.
func (s *Service) RefreshCalls(ctx context.Context, days int, companyID string) (RefreshResult, error) {
	if days <= 0 {
		days = 7
	}
	if days > maxRefreshDays {
		days = maxRefreshDays
	}

	if s.rdb != nil {
		token, err := utils.AcquireSingleFlight(ctx, s.rdb, refreshLockKey, refreshLockTTL)
		if err != nil {
			return RefreshResult{}, err
		}
		if token == "" {
			return RefreshResult{}, ErrRefreshInProgress
		}
		defer func() {
			if err := utils.ReleaseSingleFlight(context.WithoutCancel(ctx), s.rdb, refreshLockKey, token); err != nil {
				s.log.Warn("failed to release refresh lock", "error", err)
			}
		}()
	}

	today := s.now().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -(days - 1))

	payloads, err := s.fetcher.FetchCalls(ctx, from, today, companyID)
	if err != nil {
		return RefreshResult{}, err
	}

	res := RefreshResult{
		From:    from.Format("2006-01-02"),
		To:      today.Format("2006-01-02"),
		Fetched: len(payloads),
	}
	if len(payloads) == 0 {
		return res, nil
	}

	n, err := s.ingestor.IngestBatch(ctx, payloads)
	if err != nil && !errors.Is(err, ingest.ErrEmptyBatch) {
		return RefreshResult{}, err
	}
	res.Ingested = n
	s.log.Info("refresh complete", "from", res.From, "to", res.To, "fetched", res.Fetched, "ingested", res.Ingested)
	return res, nil
}

type RepairResult struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
}

// QuickRepair backfills agent names for rows where the agent is empty but
// the tags carry an "Agent: Name" marker.
func (s *Service) QuickRepair(ctx context.Context) (RepairResult, error) {
	rows, err := s.store.ListMissingAgent(ctx)
	if err != nil {
		return RepairResult{}, err
	}
	res := RepairResult{Scanned: len(rows)}
	for _, row := range rows {
		agent := ingest.AgentFromTags(row.Tags)
		if agent == "" {
			continue
		}
		if err := s.store.SetAgentName(ctx, row.ID, agent); err != nil {
			return res, err
		}
		res.Repaired++
	}
	s.log.Info("quick repair complete", "scanned", res.Scanned, "repaired", res.Repaired)
	return res, nil
}

// DBStats reports row count and the stored date range.
func (s *Service) DBStats(ctx context.Context) (calls.StoreStats, error) {
	return s.store.Stats(ctx)
}

// Dates lists per-day call counts, most recent first.
func (s *Service) Dates(ctx context.Context, limit int) ([]calls.DailyCount, error) {
	if limit <= 0 || limit > 365 {
		limit = 60
	}
	return s.store.DailyCounts(ctx, limit)
}
