package metrics

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"call-insights/internal/calls"
)

var ErrInvalidRequest = errors.New("metrics: invalid request")

// Repository abstracts row access for the engine. Implementations return the
// raw rows in [from, to); all filtering and aggregation happens here so every
// metric applies identical semantics.
type Repository interface {
	ListRange(ctx context.Context, from, to time.Time) ([]calls.CallRecord, error)
	FirstSeenByCustomer(ctx context.Context) (map[string]time.Time, error)
}

// Service is the metrics engine: every operation is a pure function of
// (stored rows, filter, window) with no side effects. Zero-row windows
// produce defined-zero aggregates, never errors.
type Service struct {
	repo Repository

	// bookingTags are the configured substrings that mark an answered call
	// as booked; they are independent of any request tag filter.
	bookingTags []string
}

func NewService(repo Repository, bookingTags []string) *Service {
	normalized := make([]string, 0, len(bookingTags))
	for _, t := range bookingTags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			normalized = append(normalized, t)
		}
	}
	return &Service{repo: repo, bookingTags: normalized}
}

func (s *Service) rows(ctx context.Context, f EffectiveFilter, w Window) ([]calls.CallRecord, error) {
	if s.repo == nil {
		return nil, errors.New("metrics: repository not configured")
	}
	if w.Start.IsZero() || w.End.IsZero() || w.End.Before(w.Start) {
		return nil, ErrInvalidRequest
	}
	from, to := w.Bounds()
	all, err := s.repo.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	matched := make([]calls.CallRecord, 0, len(all))
	for _, c := range all {
		if f.Matches(c) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

func (s *Service) booked(c calls.CallRecord) bool {
	tags := strings.ToLower(c.Tags)
	for _, t := range s.bookingTags {
		if strings.Contains(tags, t) {
			return true
		}
	}
	return false
}

// AnswerRate counts answered vs total calls. An empty window yields
// {0, 0, 0.0}.
func (s *Service) AnswerRate(ctx context.Context, f EffectiveFilter, w Window) (AnswerRate, error) {
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return AnswerRate{}, err
	}
	out := AnswerRate{Start: w.StartDate(), End: w.EndDate()}
	for _, c := range rows {
		out.Total++
		if c.Answered() {
			out.Answered++
		}
	}
	if out.Total > 0 {
		out.AnswerRate = float64(out.Answered) / float64(out.Total)
	}
	return out, nil
}

// Conversion counts answered calls whose tag text contains any configured
// booking tag. booked_rate = booked / answered with the zero-denominator
// policy of AnswerRate.
func (s *Service) Conversion(ctx context.Context, f EffectiveFilter, w Window) (Conversion, error) {
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return Conversion{}, err
	}
	out := Conversion{Start: w.StartDate(), End: w.EndDate()}
	for _, c := range rows {
		if !c.Answered() {
			continue
		}
		out.Answered++
		if s.booked(c) {
			out.Booked++
		}
	}
	if out.Answered > 0 {
		out.BookedRate = float64(out.Booked) / float64(out.Answered)
	}
	return out, nil
}

const unknownAgent = "(unknown)"

// AgentScorecard groups matching calls by agent. Rows are sorted by agent
// name so repeated calls against the same data are stable.
func (s *Service) AgentScorecard(ctx context.Context, f EffectiveFilter, w Window) (AgentScorecard, error) {
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return AgentScorecard{}, err
	}

	type acc struct {
		calls, answered, booked int
		talkSeconds, talkCalls  int
	}
	byAgent := map[string]*acc{}
	for _, c := range rows {
		name := strings.TrimSpace(c.AgentName)
		if name == "" {
			name = unknownAgent
		}
		a := byAgent[name]
		if a == nil {
			a = &acc{}
			byAgent[name] = a
		}
		a.calls++
		if c.Answered() {
			a.answered++
			if s.booked(c) {
				a.booked++
			}
		}
		if c.HasCountableDuration() {
			a.talkSeconds += c.DurationSeconds
			a.talkCalls++
		}
	}

	names := make([]string, 0, len(byAgent))
	for n := range byAgent {
		names = append(names, n)
	}
	sort.Strings(names)

	out := AgentScorecard{Start: w.StartDate(), End: w.EndDate(), Agents: make([]AgentRow, 0, len(names))}
	for _, n := range names {
		a := byAgent[n]
		row := AgentRow{Agent: n, Calls: a.calls, Answered: a.answered, Booked: a.booked}
		if a.answered > 0 {
			row.BookedRate = float64(a.booked) / float64(a.answered)
		}
		if a.talkCalls > 0 {
			row.AvgDurationSeconds = float64(a.talkSeconds) / float64(a.talkCalls)
			row.AvgDurationHMS = calls.FormatHMS(row.AvgDurationSeconds)
		}
		out.Agents = append(out.Agents, row)
	}
	return out, nil
}

// TimeBuckets histograms matching calls by hour-of-day (0-23) or weekday
// (Monday=0 .. Sunday=6). The dense grid always has 24 or 7 slots; the sparse
// list carries only the non-zero ones.
func (s *Service) TimeBuckets(ctx context.Context, f EffectiveFilter, w Window, by BucketBy) (TimeBuckets, error) {
	if by != BucketByHour && by != BucketByWeekday {
		return TimeBuckets{}, ErrInvalidRequest
	}
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return TimeBuckets{}, err
	}

	slots := 24
	if by == BucketByWeekday {
		slots = 7
	}
	grid := make([]int, slots)
	for _, c := range rows {
		grid[bucketIndex(c.StartedAt, by)]++
	}

	out := TimeBuckets{Start: w.StartDate(), End: w.EndDate(), By: by, Grid: grid, Buckets: make([]Bucket, 0, slots)}
	for i, n := range grid {
		if n > 0 {
			out.Buckets = append(out.Buckets, Bucket{Bucket: i, Count: n})
		}
	}
	return out, nil
}

func bucketIndex(t time.Time, by BucketBy) int {
	if by == BucketByWeekday {
		// time.Weekday has Sunday=0; reports use Monday=0.
		return (int(t.Weekday()) + 6) % 7
	}
	return t.Hour()
}

// SpeedToAnswer aggregates ring time over answered calls with positive
// duration: average, p50/p90, and the share answered within slaSeconds.
func (s *Service) SpeedToAnswer(ctx context.Context, f EffectiveFilter, w Window, slaSeconds int) (SpeedToAnswer, error) {
	if slaSeconds < 0 {
		return SpeedToAnswer{}, ErrInvalidRequest
	}
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return SpeedToAnswer{}, err
	}

	rings := make([]float64, 0, len(rows))
	within := 0
	sum := 0
	for _, c := range rows {
		if !c.HasCountableDuration() {
			continue
		}
		rings = append(rings, float64(c.RingTimeSeconds))
		sum += c.RingTimeSeconds
		if c.RingTimeSeconds <= slaSeconds {
			within++
		}
	}

	out := SpeedToAnswer{Start: w.StartDate(), End: w.EndDate(), Total: len(rings), SLASeconds: slaSeconds}
	if len(rings) == 0 {
		return out, nil
	}
	sort.Float64s(rings)
	out.AvgSeconds = float64(sum) / float64(len(rings))
	out.P50Seconds = percentile(rings, 0.5)
	out.P90Seconds = percentile(rings, 0.9)
	out.SLARate = float64(within) / float64(len(rings))
	return out, nil
}

// percentile interpolates linearly over sorted values; p in [0, 1].
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := float64(len(sorted)-1) * p
	lo := int(idx)
	hi := lo + 1
	if hi > len(sorted)-1 {
		hi = len(sorted) - 1
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// AgentOccupancy reports per-agent talk/hold totals and talk time as a
// fraction of the window duration. Sorted by talk time descending, then name.
func (s *Service) AgentOccupancy(ctx context.Context, f EffectiveFilter, w Window) (AgentOccupancy, error) {
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return AgentOccupancy{}, err
	}

	type acc struct {
		answered, talk, hold int
	}
	byAgent := map[string]*acc{}
	for _, c := range rows {
		if !c.HasCountableDuration() {
			continue
		}
		name := strings.TrimSpace(c.AgentName)
		if name == "" {
			name = unknownAgent
		}
		a := byAgent[name]
		if a == nil {
			a = &acc{}
			byAgent[name] = a
		}
		a.answered++
		a.talk += c.DurationSeconds
		a.hold += c.HoldTimeSeconds
	}

	windowSeconds := float64(w.Days()) * 24 * 60 * 60

	out := AgentOccupancy{Start: w.StartDate(), End: w.EndDate(), Agents: make([]AgentOccupancyRow, 0, len(byAgent))}
	for name, a := range byAgent {
		row := AgentOccupancyRow{
			Agent:            name,
			AnsweredCalls:    a.answered,
			TotalTalkSeconds: a.talk,
			TotalHoldSeconds: a.hold,
			AvgTalkSeconds:   float64(a.talk) / float64(a.answered),
		}
		if windowSeconds > 0 {
			row.Occupancy = float64(a.talk) / windowSeconds
		}
		out.Agents = append(out.Agents, row)
	}
	sort.Slice(out.Agents, func(i, j int) bool {
		if out.Agents[i].TotalTalkSeconds != out.Agents[j].TotalTalkSeconds {
			return out.Agents[i].TotalTalkSeconds > out.Agents[j].TotalTalkSeconds
		}
		return out.Agents[i].Agent < out.Agents[j].Agent
	})
	return out, nil
}

// TagSummary tallies comma-split tag terms (case-insensitive) across matching
// rows and returns the top limit entries by count, then name.
func (s *Service) TagSummary(ctx context.Context, f EffectiveFilter, w Window, limit int) (TagSummary, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return TagSummary{}, err
	}

	counts := map[string]int{}
	for _, c := range rows {
		for _, tag := range c.TagList() {
			counts[strings.ToLower(tag)]++
		}
	}

	out := TagSummary{Start: w.StartDate(), End: w.EndDate(), TotalDistinct: len(counts), Tags: make([]TagCount, 0, len(counts))}
	for tag, n := range counts {
		out.Tags = append(out.Tags, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out.Tags, func(i, j int) bool {
		if out.Tags[i].Count != out.Tags[j].Count {
			return out.Tags[i].Count > out.Tags[j].Count
		}
		return out.Tags[i].Tag < out.Tags[j].Tag
	})
	if len(out.Tags) > limit {
		out.Tags = out.Tags[:limit]
	}
	return out, nil
}

// NewVsReturning counts distinct callers active in the window and splits
// them by whether their first-ever call falls inside it. Rows without a
// customer number are skipped; first-seen lookup spans the whole store,
// unfiltered, since "new" is a property of the caller, not the slice.
func (s *Service) NewVsReturning(ctx context.Context, f EffectiveFilter, w Window) (NewVsReturning, error) {
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return NewVsReturning{}, err
	}

	out := NewVsReturning{Start: w.StartDate(), End: w.EndDate()}
	inWindow := map[string]bool{}
	for _, c := range rows {
		if p := strings.TrimSpace(c.CustomerPhoneNumber); p != "" {
			inWindow[p] = true
		}
	}
	if len(inWindow) == 0 {
		return out, nil
	}

	firstSeen, err := s.repo.FirstSeenByCustomer(ctx)
	if err != nil {
		return NewVsReturning{}, err
	}
	from, _ := w.Bounds()
	for p := range inWindow {
		if first, ok := firstSeen[p]; ok && first.Before(from) {
			out.ReturningCallers++
		} else {
			out.NewCallers++
		}
	}
	out.NewRate = float64(out.NewCallers) / float64(out.NewCallers+out.ReturningCallers)
	return out, nil
}

const unknownSource = "Unknown"

// SourceConversion groups window calls by provider source and reports volume,
// answered count, and booked count per source. booked_rate = booked/answered
// with the usual zero-denominator policy. Rows sort by volume, then name.
func (s *Service) SourceConversion(ctx context.Context, f EffectiveFilter, w Window) (SourceConversion, error) {
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return SourceConversion{}, err
	}

	type acc struct {
		calls, answered, booked int
	}
	bySource := map[string]*acc{}
	for _, c := range rows {
		source := strings.TrimSpace(c.SourceName)
		if source == "" {
			source = unknownSource
		}
		a := bySource[source]
		if a == nil {
			a = &acc{}
			bySource[source] = a
		}
		a.calls++
		if c.Answered() {
			a.answered++
		}
		if s.booked(c) {
			a.booked++
		}
	}

	out := SourceConversion{Start: w.StartDate(), End: w.EndDate(), Sources: make([]SourceRow, 0, len(bySource))}
	for source, a := range bySource {
		row := SourceRow{Source: source, Calls: a.calls, Answered: a.answered, Booked: a.booked}
		if a.answered > 0 {
			row.BookedRate = float64(a.booked) / float64(a.answered)
		}
		out.Sources = append(out.Sources, row)
	}
	sort.Slice(out.Sources, func(i, j int) bool {
		if out.Sources[i].Calls != out.Sources[j].Calls {
			return out.Sources[i].Calls > out.Sources[j].Calls
		}
		return out.Sources[i].Source < out.Sources[j].Source
	})
	return out, nil
}

// MissedCalls reports the missed rate plus "critical" misses that rang at
// least criticalRing seconds before being abandoned.
func (s *Service) MissedCalls(ctx context.Context, f EffectiveFilter, w Window, criticalRing int) (MissedCalls, error) {
	if criticalRing < 0 {
		return MissedCalls{}, ErrInvalidRequest
	}
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return MissedCalls{}, err
	}

	out := MissedCalls{Start: w.StartDate(), End: w.EndDate(), CriticalRingSeconds: criticalRing}
	for _, c := range rows {
		out.Total++
		if c.Status != calls.CallStatusMissed {
			continue
		}
		out.Missed++
		if c.RingTimeSeconds >= criticalRing {
			out.CriticalMissed++
		}
	}
	if out.Total > 0 {
		out.MissedRate = float64(out.Missed) / float64(out.Total)
	}
	return out, nil
}

// Heatmap builds the 7x24 weekday-by-hour call volume grid.
func (s *Service) Heatmap(ctx context.Context, f EffectiveFilter, w Window) (Heatmap, error) {
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return Heatmap{}, err
	}

	grid := make([][]int, 7)
	for i := range grid {
		grid[i] = make([]int, 24)
	}
	for _, c := range rows {
		grid[bucketIndex(c.StartedAt, BucketByWeekday)][c.StartedAt.Hour()]++
	}
	return Heatmap{Start: w.StartDate(), End: w.EndDate(), Grid: grid}, nil
}

// DataQuality snapshots recording coverage and zero-duration answered calls.
func (s *Service) DataQuality(ctx context.Context, f EffectiveFilter, w Window) (DataQuality, error) {
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return DataQuality{}, err
	}

	out := DataQuality{Start: w.StartDate(), End: w.EndDate()}
	for _, c := range rows {
		out.Total++
		if !c.Answered() {
			continue
		}
		out.Answered++
		if c.RecordingURL != "" {
			out.AnsweredWithRecording++
		}
		if c.DurationSeconds <= 0 {
			out.AnsweredZeroDuration++
		}
	}
	return out, nil
}

// AverageCallTime averages duration over answered calls with positive
// duration. An empty matching set yields zero values and an explanatory note.
func (s *Service) AverageCallTime(ctx context.Context, f EffectiveFilter, w Window) (AverageCallTime, error) {
	rows, err := s.rows(ctx, f, w)
	if err != nil {
		return AverageCallTime{}, err
	}

	sum := 0
	count := 0
	for _, c := range rows {
		if !c.HasCountableDuration() {
			continue
		}
		sum += c.DurationSeconds
		count++
	}

	out := AverageCallTime{Start: w.StartDate(), End: w.EndDate(), Count: count}
	if count == 0 {
		out.AverageHMS = calls.FormatHMS(0)
		out.Note = "no answered calls with positive duration in the selected window"
		return out, nil
	}
	out.AverageSeconds = float64(sum) / float64(count)
	out.AverageHMS = calls.FormatHMS(out.AverageSeconds)
	return out, nil
}
