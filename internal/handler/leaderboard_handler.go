package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/exporter"
	"github.com/contest-maker-150/assessment/internal/service"
)

// LeaderboardReader fetches ranked leaderboards
type LeaderboardReader interface {
	Fetch(ctx context.Context, ref domain.ActivityRef) (*service.LeaderboardView, error)
	Recompute(ctx context.Context, ref domain.ActivityRef) (*service.LeaderboardView, error)
}

// LeaderboardHandler handles leaderboard HTTP requests
type LeaderboardHandler struct {
	leaderboards LeaderboardReader
	exporters    *exporter.Factory
	logger       *zap.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(leaderboards LeaderboardReader, exporters *exporter.Factory, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboards: leaderboards,
		exporters:    exporters,
		logger:       logger,
	}
}

// Register mounts the leaderboard routes on an authenticated group
func (h *LeaderboardHandler) Register(rg *gin.RouterGroup) {
	boards := rg.Group("/leaderboards/:kind/:activityId")
	{
		boards.GET("", h.GetLeaderboard)
		boards.POST("/recompute", h.Recompute)
		boards.GET("/export", h.Export)
	}
}

func activityRef(c *gin.Context) (domain.ActivityRef, bool) {
	ref := domain.ActivityRef{ID: c.Param("activityId"), Kind: domain.ActivityKind(c.Param("kind"))}
	if !ref.Kind.Valid() {
		respondError(c, domain.ErrUnsupportedActivityKind)
		return ref, false
	}
	return ref, true
}

// GetLeaderboard returns the ranked leaderboard
// GET /api/leaderboards/:kind/:activityId
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	ref, ok := activityRef(c)
	if !ok {
		return
	}

	view, err := h.leaderboards.Fetch(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Recompute asks the backend to recalculate scores
// POST /api/leaderboards/:kind/:activityId/recompute
func (h *LeaderboardHandler) Recompute(c *gin.Context) {
	ref, ok := activityRef(c)
	if !ok {
		return
	}

	view, err := h.leaderboards.Recompute(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Export downloads the leaderboard as a spreadsheet
// GET /api/leaderboards/:kind/:activityId/export?format=xlsx|csv
func (h *LeaderboardHandler) Export(c *gin.Context) {
	ref, ok := activityRef(c)
	if !ok {
		return
	}

	format := exporter.Format(c.DefaultQuery("format", string(exporter.FormatXLSX)))
	exp, ok := h.exporters.Get(format)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unsupported export format",
			"code":  "unsupported_format",
		})
		return
	}

	view, err := h.leaderboards.Fetch(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := exp.Export(c.Request.Context(), view.Entries, &buf); err != nil {
		h.logger.Error("Failed to export leaderboard",
			zap.String("activity_id", ref.ID),
			zap.String("format", string(format)),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("leaderboard-%s-%s%s", ref.Kind, ref.ID, format.Suffix())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
