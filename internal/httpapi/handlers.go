package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"call-insights/internal/admin"
	"call-insights/internal/audit"
	"call-insights/internal/auth"
	"call-insights/internal/callrail"
	"call-insights/internal/config"
	"call-insights/internal/export"
	"call-insights/internal/ingest"
	"call-insights/internal/metrics"
	"call-insights/pkg/logger"
	"call-insights/pkg/utils"
)

const (
	defaultWindowDays   = 7
	defaultSLASeconds   = 30
	defaultCriticalRing = 20
	healthPingTimeout   = 2 * time.Second
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Metrics *metrics.Service
	Ingest  *ingest.Service
	Admin   *admin.Service
	Auth    *auth.Manager
	Audit   *audit.Service
	Filters config.FilterConfig
	DB      *sql.DB

	// Now is the request clock; overridable in tests.
	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

// window resolves start/end/days query params into an inclusive date window.
// Explicit start+end win; otherwise days (default 7) ending today.
func (h Handlers) window(c *gin.Context) (metrics.Window, bool) {
	startStr := c.Query("start")
	endStr := c.Query("end")

	if startStr == "" && endStr == "" {
		days := defaultWindowDays
		if raw := c.Query("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				badRequest(c, "days must be a positive integer")
				return metrics.Window{}, false
			}
			days = n
		}
		return metrics.LastDays(h.now(), days), true
	}

	if startStr == "" || endStr == "" {
		badRequest(c, "start and end must be provided together")
		return metrics.Window{}, false
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		badRequest(c, "start must be a YYYY-MM-DD date")
		return metrics.Window{}, false
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		badRequest(c, "end must be a YYYY-MM-DD date")
		return metrics.Window{}, false
	}
	if end.Before(start) {
		badRequest(c, "start must not be after end")
		return metrics.Window{}, false
	}
	return metrics.NewWindow(start, end), true
}

func (h Handlers) filter(c *gin.Context) metrics.EffectiveFilter {
	return metrics.ResolveFilter(c.Query("only_agent"), c.Query("only_tags"), h.Filters)
}

// auditAction records an operator action; failures are logged, never surfaced.
func (h Handlers) auditAction(c *gin.Context, typ audit.EventType, message, metadata string) {
	if h.Audit == nil {
		return
	}
	operator, _ := auth.Operator(c.Request.Context())
	if err := h.Audit.LogOperatorAction(c.Request.Context(), typ, operator, c.ClientIP(), message, metadata); err != nil {
		logger.FromGin(c).Warn("audit append failed", "error", err)
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func internalError(c *gin.Context, err error) {
	logger.FromGin(c).Error("request failed", "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// --- Metrics ---

func (h Handlers) AnswerRate(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	out, err := h.Metrics.AnswerRate(c.Request.Context(), h.filter(c), w)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) Conversion(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	out, err := h.Metrics.Conversion(c.Request.Context(), h.filter(c), w)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) AgentScorecard(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	out, err := h.Metrics.AgentScorecard(c.Request.Context(), h.filter(c), w)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) TimeBuckets(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	by := metrics.BucketBy(c.DefaultQuery("by", string(metrics.BucketByHour)))
	out, err := h.Metrics.TimeBuckets(c.Request.Context(), h.filter(c), w, by)
	if err != nil {
		if errors.Is(err, metrics.ErrInvalidRequest) {
			badRequest(c, "by must be hour or weekday")
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) SpeedToAnswer(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	sla := defaultSLASeconds
	if raw := c.Query("sla"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "sla must be a positive integer of seconds")
			return
		}
		sla = n
	}
	out, err := h.Metrics.SpeedToAnswer(c.Request.Context(), h.filter(c), w, sla)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) AgentOccupancy(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	out, err := h.Metrics.AgentOccupancy(c.Request.Context(), h.filter(c), w)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) TagSummary(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	out, err := h.Metrics.TagSummary(c.Request.Context(), h.filter(c), w, limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) NewVsReturning(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	out, err := h.Metrics.NewVsReturning(c.Request.Context(), h.filter(c), w)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) SourceConversion(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	out, err := h.Metrics.SourceConversion(c.Request.Context(), h.filter(c), w)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) MissedCalls(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	critical := defaultCriticalRing
	if raw := c.Query("critical_ring"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "critical_ring must be a positive integer of seconds")
			return
		}
		critical = n
	}
	out, err := h.Metrics.MissedCalls(c.Request.Context(), h.filter(c), w, critical)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) Heatmap(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	out, err := h.Metrics.Heatmap(c.Request.Context(), h.filter(c), w)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) DataQuality(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	out, err := h.Metrics.DataQuality(c.Request.Context(), h.filter(c), w)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- Reports ---

// AvgCallTimeLastWeek is the fixed 7-day average talk time report. It
// accepts the same filter params as the metrics endpoints but never a
// custom window.
func (h Handlers) AvgCallTimeLastWeek(c *gin.Context) {
	w := metrics.LastDays(h.now(), defaultWindowDays)
	out, err := h.Metrics.AverageCallTime(c.Request.Context(), h.filter(c), w)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// AgentScorecardXLSX streams the scorecard as an Excel workbook.
func (h Handlers) AgentScorecardXLSX(c *gin.Context) {
	w, ok := h.window(c)
	if !ok {
		return
	}
	sc, err := h.Metrics.AgentScorecard(c.Request.Context(), h.filter(c), w)
	if err != nil {
		internalError(c, err)
		return
	}
	buf, err := export.ScorecardWorkbook(sc)
	if err != nil {
		internalError(c, err)
		return
	}
	filename := fmt.Sprintf("agent-scorecard-%s-%s.xlsx", sc.Start, sc.End)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// --- Ingestion ---

func (h Handlers) IngestCalls(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		badRequest(c, "unreadable body")
		return
	}
	payloads, err := decodeBulkPayload(raw)
	if err != nil {
		badRequest(c, `body must be a JSON array of call objects or {"calls": [...]}`)
		return
	}
	n, err := h.Ingest.IngestBatch(c.Request.Context(), payloads)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyBatch) {
			badRequest(c, "no ingestable calls in payload")
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ingested": n})
}

// decodeBulkPayload accepts either a bare JSON array of call objects or an
// object wrapping the array under "calls".
func decodeBulkPayload(raw []byte) ([]map[string]any, error) {
	var arr []map[string]any
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}
	var wrapped struct {
		Calls []map[string]any `json:"calls"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Calls == nil {
		return nil, errors.New("httpapi: unrecognized bulk payload shape")
	}
	return wrapped.Calls, nil
}

func (h Handlers) CallCompletedWebhook(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "body must be a JSON object")
		return
	}
	rec, err := h.Ingest.IngestWebhook(c.Request.Context(), payload)
	if err != nil {
		if errors.Is(err, ingest.ErrMissingID) {
			badRequest(c, "call id is required")
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": rec.ID, "status": rec.Status})
}

// --- Admin ---

func (h Handlers) RefreshCalls(c *gin.Context) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "days must be a positive integer")
			return
		}
		days = n
	}
	res, err := h.Admin.RefreshCalls(c.Request.Context(), days, c.Query("company_id"))
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrRefreshInProgress):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a refresh is already running"})
		case errors.Is(err, callrail.ErrNotConfigured):
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "provider credentials not configured"})
		default:
			internalError(c, err)
		}
		return
	}
	h.auditAction(c, audit.EventTypeRefresh,
		fmt.Sprintf("refreshed %s..%s", res.From, res.To),
		fmt.Sprintf(`{"fetched":%d,"ingested":%d}`, res.Fetched, res.Ingested))
	c.JSON(http.StatusOK, res)
}

func (h Handlers) QuickRepair(c *gin.Context) {
	res, err := h.Admin.QuickRepair(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	h.auditAction(c, audit.EventTypeQuickRepair,
		"backfilled agent names",
		fmt.Sprintf(`{"scanned":%d,"repaired":%d}`, res.Scanned, res.Repaired))
	c.JSON(http.StatusOK, res)
}

func (h Handlers) DBStats(c *gin.Context) {
	stats, err := h.Admin.DBStats(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h Handlers) Dates(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	days, err := h.Admin.Dates(c.Request.Context(), limit)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": days})
}

// AuditLog lists the most recent operator actions.
func (h Handlers) AuditLog(c *gin.Context) {
	if h.Audit == nil {
		c.JSON(http.StatusOK, gin.H{"events": []audit.Event{}})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events, err := h.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		internalError(c, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// --- Auth ---

type tokenRequest struct {
	OperatorKey string `json:"operator_key"`
	Operator    string `json:"operator"`
}

// IssueToken trades the shared operator key for an admin JWT pair.
func (h Handlers) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	if req.OperatorKey == "" {
		badRequest(c, "operator_key required")
		return
	}
	pair, err := h.Auth.Exchange(time.Now(), req.OperatorKey, req.Operator)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid operator key"})
		return
	}
	if h.Audit != nil {
		if err := h.Audit.LogOperatorAction(c.Request.Context(), audit.EventTypeTokenIssued, req.Operator, c.ClientIP(), "admin token issued", ""); err != nil {
			logger.FromGin(c).Warn("audit append failed", "error", err)
		}
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h Handlers) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		badRequest(c, "refresh_token required")
		return
	}
	pair, err := h.Auth.Refresh(time.Now(), req.RefreshToken)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// --- Health ---

func (h Handlers) Healthz(c *gin.Context) {
	if h.DB != nil {
		if err := utils.HealthCheck(c.Request.Context(), h.DB, healthPingTimeout); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
