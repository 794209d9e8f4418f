package apihttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"explorer/internal/dispatch"
	"explorer/internal/logger"
	"explorer/internal/pipeline"
	"explorer/internal/store/calllog"
	"explorer/internal/store/gormstore"
	"explorer/internal/types"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 1 << 20

// Explorer runs one submission through the pipeline.
type Explorer interface {
	ProcessObserved(ctx context.Context, input types.InputRecord, extracted *types.ExtractedContext, obs dispatch.Observer) (types.AggregateResult, error)
}

type Catalog interface {
	ListAll() []types.ModelDescriptor
}

type History interface {
	SaveRun(ctx context.Context, res types.AggregateResult) error
	GetRun(ctx context.Context, id string) (gormstore.RunRecord, error)
	ListRuns(ctx context.Context, q gormstore.ListQuery) ([]gormstore.RunRecord, int64, error)
	SetFavorite(ctx context.Context, id string, favorite bool) error
	DeleteRun(ctx context.Context, id string) error
}

type CallLog interface {
	RecordOutcomes(ctx context.Context, runID string, at time.Time, outcomes []types.ModelOutcome) error
	Stats(ctx context.Context) ([]calllog.ModelStats, error)
}

// Router 挂载 /api 路由。
type Router struct {
	Explorer Explorer
	Catalog  Catalog
	History  History
	Calls    CallLog
}

func NewRouter(explorer Explorer, catalog Catalog, history History, calls CallLog) *Router {
	return &Router{Explorer: explorer, Catalog: catalog, History: history, Calls: calls}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/explore", r.handleExplore)
	group.GET("/explore/stream", r.handleExploreStream)
	group.GET("/models", r.handleModels)
	if r.History != nil {
		group.GET("/history", r.handleHistoryList)
		group.GET("/history/:id", r.handleHistoryGet)
		group.POST("/history/:id/favorite", r.handleHistoryFavorite)
		group.DELETE("/history/:id", r.handleHistoryDelete)
	}
	if r.Calls != nil {
		group.GET("/stats", r.handleStats)
	}
}

func (r *Router) handleExplore(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
		return
	}
	req, err := decodeExplore(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := r.Explorer.ProcessObserved(c.Request.Context(), req.InputRecord, req.Context, nil)
	if err != nil {
		status := pipeline.StatusOf(err)
		if status >= http.StatusInternalServerError {
			logger.Errorf("explore failed: %v", err)
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	r.persist(c.Request.Context(), res)
	c.JSON(http.StatusOK, res)
}

// persist is best effort; a storage failure never fails the request.
func (r *Router) persist(ctx context.Context, res types.AggregateResult) {
	ctx = context.WithoutCancel(ctx)
	if r.History != nil {
		if err := r.History.SaveRun(ctx, res); err != nil {
			logger.Warnf("save run %s failed: %v", res.ID, err)
		}
	}
	if r.Calls != nil {
		if err := r.Calls.RecordOutcomes(ctx, res.ID, res.ProducedAt, res.Outcomes); err != nil {
			logger.Warnf("record calls for run %s failed: %v", res.ID, err)
		}
	}
}

func (r *Router) handleModels(c *gin.Context) {
	list := r.Catalog.ListAll()
	c.JSON(http.StatusOK, gin.H{
		"models":       list,
		"total_models": len(list),
		"status":       "Available models for rotation",
	})
}

func (r *Router) handleHistoryList(c *gin.Context) {
	q := gormstore.ListQuery{
		Limit:         queryInt(c, "limit", 20),
		Offset:        queryInt(c, "offset", 0),
		FavoritesOnly: queryBool(c, "favorites"),
	}
	runs, total, err := r.History.ListRuns(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []gormstore.RunRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": total, "limit": q.Limit, "offset": q.Offset})
}

func (r *Router) handleHistoryGet(c *gin.Context) {
	rec, err := r.History.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleHistoryFavorite(c *gin.Context) {
	var body struct {
		Favorite *bool `json:"favorite" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "favorite (bool) is required"})
		return
	}
	id := c.Param("id")
	if err := r.History.SetFavorite(c.Request.Context(), id, *body.Favorite); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "favorite": *body.Favorite})
}

func (r *Router) handleHistoryDelete(c *gin.Context) {
	id := c.Param("id")
	if err := r.History.DeleteRun(c.Request.Context(), id); err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}

func (r *Router) handleStats(c *gin.Context) {
	stats, err := r.Calls.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stats == nil {
		stats = []calllog.ModelStats{}
	}
	c.JSON(http.StatusOK, gin.H{"models": stats})
}

func writeStoreError(c *gin.Context, err error) {
	if errors.Is(err, gormstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && v
}
