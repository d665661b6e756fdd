package metrics

import "time"

// Window is an inclusive date range. Start and End are date-resolution values;
// a call belongs to the window when its started_at date falls between them.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LastDays returns the rolling window of n days ending on (and including) today.
// LastDays(today, 7) spans [today-6, today].
func LastDays(today time.Time, n int) Window {
	if n < 1 {
		n = 1
	}
	end := truncateDay(today)
	return Window{Start: end.AddDate(0, 0, -(n - 1)), End: end}
}

// NewWindow builds a window from explicit inclusive dates.
func NewWindow(start, end time.Time) Window {
	return Window{Start: truncateDay(start), End: truncateDay(end)}
}

// Bounds converts the inclusive date pair to half-open timestamp bounds
// suitable for range scans: [start 00:00, end+1d 00:00).
func (w Window) Bounds() (from, to time.Time) {
	return truncateDay(w.Start), truncateDay(w.End).AddDate(0, 0, 1)
}

// Days is the window length in whole days (>= 1). Counted by calendar date,
// not elapsed time, so a DST transition inside the window does not skew it.
func (w Window) Days() int {
	from, to := w.Bounds()
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	f := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f) / (24 * time.Hour))
}

func (w Window) StartDate() string { return w.Start.Format("2006-01-02") }
func (w Window) EndDate() string   { return w.End.Format("2006-01-02") }

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// --- Aggregate outputs. Start/End echo the resolved window. ---

type AnswerRate struct {
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Answered   int     `json:"answered"`
	Total      int     `json:"total"`
	AnswerRate float64 `json:"answer_rate"`
}

type Conversion struct {
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Answered   int     `json:"answered"`
	Booked     int     `json:"booked"`
	BookedRate float64 `json:"booked_rate"`
}

type AgentRow struct {
	Agent              string  `json:"agent"`
	Calls              int     `json:"calls"`
	Answered           int     `json:"answered"`
	Booked             int     `json:"booked"`
	BookedRate         float64 `json:"booked_rate"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	AvgDurationHMS     string  `json:"avg_duration_hms"`
}

type AgentScorecard struct {
	Start  string     `json:"start"`
	End    string     `json:"end"`
	Agents []AgentRow `json:"agents"`
}

type BucketBy string

const (
	BucketByHour    BucketBy = "hour"
	BucketByWeekday BucketBy = "weekday"
)

type Bucket struct {
	Bucket int `json:"bucket"`
	Count  int `json:"count"`
}

// TimeBuckets carries both views of the same histogram: Buckets lists only the
// non-empty slots; Grid is the dense zero-filled array (24 or 7 entries).
type TimeBuckets struct {
	Start   string   `json:"start"`
	End     string   `json:"end"`
	By      BucketBy `json:"by"`
	Buckets []Bucket `json:"buckets"`
	Grid    []int    `json:"grid"`
}

type SpeedToAnswer struct {
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Total      int     `json:"total"`
	AvgSeconds float64 `json:"avg_seconds"`
	P50Seconds float64 `json:"p50_seconds"`
	P90Seconds float64 `json:"p90_seconds"`
	SLASeconds int     `json:"sla_seconds"`
	SLARate    float64 `json:"sla_rate"`
}

type AgentOccupancyRow struct {
	Agent            string  `json:"agent"`
	AnsweredCalls    int     `json:"answered_calls"`
	TotalTalkSeconds int     `json:"total_talk_seconds"`
	TotalHoldSeconds int     `json:"total_hold_seconds"`
	AvgTalkSeconds   float64 `json:"avg_talk_seconds"`

	// Occupancy is total talk time as a fraction of the window duration.
	Occupancy float64 `json:"occupancy"`
}

type AgentOccupancy struct {
	Start  string              `json:"start"`
	End    string              `json:"end"`
	Agents []AgentOccupancyRow `json:"agents"`
}

// NewVsReturning splits the callers active in the window by whether the
// window contains their first-ever call.
type NewVsReturning struct {
	Start            string  `json:"start"`
	End              string  `json:"end"`
	NewCallers       int     `json:"new_callers"`
	ReturningCallers int     `json:"returning_callers"`
	NewRate          float64 `json:"new_rate"`
}

type SourceRow struct {
	Source     string  `json:"source"`
	Calls      int     `json:"calls"`
	Answered   int     `json:"answered"`
	Booked     int     `json:"booked"`
	BookedRate float64 `json:"booked_rate"`
}

type SourceConversion struct {
	Start   string      `json:"start"`
	End     string      `json:"end"`
	Sources []SourceRow `json:"sources"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

type TagSummary struct {
	Start         string     `json:"start"`
	End           string     `json:"end"`
	Tags          []TagCount `json:"tags"`
	TotalDistinct int        `json:"total_distinct"`
}

type MissedCalls struct {
	Start               string  `json:"start"`
	End                 string  `json:"end"`
	Total               int     `json:"total"`
	Missed              int     `json:"missed"`
	MissedRate          float64 `json:"missed_rate"`
	CriticalMissed      int     `json:"critical_missed"`
	CriticalRingSeconds int     `json:"critical_ring_seconds"`
}

// Heatmap is a weekday x hour grid of call counts: 7 rows (Monday=0 ..
// Sunday=6), 24 columns.
type Heatmap struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Grid  [][]int `json:"grid"`
}

type DataQuality struct {
	Start                 string `json:"start"`
	End                   string `json:"end"`
	Total                 int    `json:"total"`
	Answered              int    `json:"answered"`
	AnsweredWithRecording int    `json:"answered_with_recording"`
	AnsweredZeroDuration  int    `json:"answered_zero_duration"`
}

type AverageCallTime struct {
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Count          int     `json:"count"`
	AverageSeconds float64 `json:"average_seconds"`
	AverageHMS     string  `json:"average_hms"`
	Note           string  `json:"note,omitempty"`
}
