package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relnotes/widget-tracker/internal/cache"
	"github.com/relnotes/widget-tracker/internal/domain"
	"github.com/relnotes/widget-tracker/internal/logger"
	"github.com/relnotes/widget-tracker/internal/middleware"
	"github.com/relnotes/widget-tracker/internal/retry"
	"github.com/relnotes/widget-tracker/internal/segment"
)

// ContentReader loads the widget content for a team.
type ContentReader interface {
	ListPublishedPosts(ctx context.Context, teamID string) ([]domain.Post, error)
	ListSegments(ctx context.Context, teamID string) ([]domain.Segment, error)
}

// ViewQueuer accepts view increments for asynchronous batched delivery.
type ViewQueuer interface {
	Queue(postID string, by int)
}

// WidgetHandler serves the embeddable widget's content and view tracking API.
type WidgetHandler struct {
	store   ContentReader
	views   ViewQueuer
	content *cache.Content
	retry   retry.Config
	log     logger.Logger
}

// NewWidgetHandler creates a WidgetHandler with the given dependencies.
func NewWidgetHandler(
	store ContentReader,
	views ViewQueuer,
	content *cache.Content,
	retryCfg retry.Config,
	log logger.Logger,
) *WidgetHandler {
	return &WidgetHandler{
		store:   store,
		views:   views,
		content: content,
		retry:   retryCfg,
		log:     log,
	}
}

// postsResponse is the widget content payload.
type postsResponse struct {
	Success bool          `json:"success"`
	Posts   []domain.Post `json:"posts"`
	Count   int           `json:"count"`
}

// incrementRequest is the view tracking request body.
type incrementRequest struct {
	PostID      string `json:"postId"`
	IncrementBy int    `json:"incrementBy"`
}

// GetPosts returns the published posts visible to the requesting domain.
// Content fetches go through the retry layer; a fully failed fetch surfaces
// as an error payload the widget renders as its empty state.
func (h *WidgetHandler) GetPosts(c *gin.Context) {
	teamID := c.Query("teamId")
	if teamID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "teamId is required",
		})
		return
	}
	host := c.Query("domain")

	if payload, ok := h.content.Get(c.Request.Context(), teamID, host); ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
		return
	}

	posts, err := retry.DoValue(c.Request.Context(), h.retry, func(ctx context.Context) ([]domain.Post, error) {
		return h.store.ListPublishedPosts(ctx, teamID)
	})
	if err != nil {
		h.failContentFetch(c, teamID, "posts", err)
		return
	}

	segments, err := retry.DoValue(c.Request.Context(), h.retry, func(ctx context.Context) ([]domain.Segment, error) {
		return h.store.ListSegments(ctx, teamID)
	})
	if err != nil {
		h.failContentFetch(c, teamID, "segments", err)
		return
	}

	visible := segment.Visible(posts, segments, host)
	payload, err := json.Marshal(postsResponse{
		Success: true,
		Posts:   visible,
		Count:   len(visible),
	})
	if err != nil {
		h.failContentFetch(c, teamID, "encode", err)
		return
	}

	h.content.Set(c.Request.Context(), teamID, host, payload)
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// failContentFetch logs the failure and responds with the widget's error state.
func (h *WidgetHandler) failContentFetch(c *gin.Context, teamID, stage string, err error) {
	h.log.Error("Widget content fetch failed",
		logger.String("team_id", teamID),
		logger.String("stage", stage),
		logger.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "unable to load updates",
	})
}

// IncrementViews enqueues a view increment for batched delivery. The request
// returns immediately; persistence is best effort and invisible to the widget.
func (h *WidgetHandler) IncrementViews(c *gin.Context) {
	var req incrementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request body",
		})
		return
	}
	if req.PostID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "postId is required",
		})
		return
	}
	if req.IncrementBy < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "incrementBy must be positive",
		})
		return
	}
	if req.IncrementBy == 0 {
		req.IncrementBy = 1
	}

	// Crawler views still get a success response but are not counted.
	if !middleware.IsBot(c) {
		h.views.Queue(req.PostID, req.IncrementBy)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
