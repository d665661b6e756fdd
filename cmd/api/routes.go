package main

import (
	"github.com/gin-gonic/gin"

	"call-insights/internal/httpapi"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, adminMW gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)

	// Provider webhooks (public).
	// NOTE: protect with provider signature validation when the upstream supports it.
	r.POST("/webhooks/call-completed", h.CallCompletedWebhook)

	// Bulk ingestion.
	r.POST("/ingest/calls", h.IngestCalls)

	// Read-only metrics surface. All endpoints accept the shared
	// start/end/days window and only_agent/only_tags filter params.
	m := r.Group("/metrics")
	{
		m.GET("/answer-rate", h.AnswerRate)
		m.GET("/conversion", h.Conversion)
		m.GET("/agent-scorecard", h.AgentScorecard)
		m.GET("/time-buckets", h.TimeBuckets)
		m.GET("/speed-to-answer", h.SpeedToAnswer)
		m.GET("/agent-occupancy", h.AgentOccupancy)
		m.GET("/new-vs-returning", h.NewVsReturning)
		m.GET("/source-conversion", h.SourceConversion)
		m.GET("/tag-summary", h.TagSummary)
		m.GET("/missed", h.MissedCalls)
		m.GET("/heatmap", h.Heatmap)
		m.GET("/data-quality", h.DataQuality)
	}

	reports := r.Group("/reports")
	{
		reports.GET("/avg-call-time-last-week", h.AvgCallTimeLastWeek)
		reports.GET("/agent-scorecard.xlsx", h.AgentScorecardXLSX)
	}

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/token", h.IssueToken)
		authGroup.POST("/refresh", h.RefreshToken)
	}

	// Operator maintenance, JWT protected.
	adminGroup := r.Group("/admin")
	adminGroup.Use(adminMW)
	{
		adminGroup.POST("/refresh-calls", h.RefreshCalls)
		adminGroup.POST("/quick-repair", h.QuickRepair)
		adminGroup.GET("/db-stats", h.DBStats)
		adminGroup.GET("/dates", h.Dates)
		adminGroup.GET("/audit", h.AuditLog)
	}
}
