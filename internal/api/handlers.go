// Package api exposes app search and statistics task submission over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	infralogger "github.com/jonesrussell/marketplace/infrastructure/logger"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/search"
	"github.com/jonesrussell/marketplace/internal/telemetry"
	"github.com/jonesrussell/marketplace/internal/totals"
)

// SearchService answers app searches.
type SearchService interface {
	Search(ctx context.Context, req search.Request) (*domain.Page, error)
	Featured(ctx context.Context, req search.Request) (*domain.Page, error)
}

// TaskQueue accepts background tasks.
type TaskQueue interface {
	Enqueue(ctx context.Context, task domain.Task) (domain.Task, error)
	EnqueueBatch(ctx context.Context, tasks []domain.Task) ([]domain.Task, error)
}

// TotalsPlanner lists the global totals tasks of a date.
type TotalsPlanner interface {
	Plan(ctx context.Context, date *domain.Date) ([]domain.Task, error)
}

// Handler holds HTTP request handlers.
type Handler struct {
	search  SearchService
	queue   TaskQueue
	planner TotalsPlanner
	timeout time.Duration
	metrics *telemetry.Metrics
	logger  infralogger.Logger
}

// NewHandler creates a handler. metrics may be nil.
func NewHandler(
	searchService SearchService,
	queue TaskQueue,
	planner TotalsPlanner,
	timeout time.Duration,
	metrics *telemetry.Metrics,
	log infralogger.Logger,
) *Handler {
	return &Handler{
		search:  searchService,
		queue:   queue,
		planner: planner,
		timeout: timeout,
		metrics: metrics,
		logger:  log,
	}
}

// Search handles GET /api/v1/apps/search/.
func (h *Handler) Search(c *gin.Context) {
	h.runSearch(c, "search", h.search.Search)
}

// Featured handles GET /api/v1/apps/search/featured/.
func (h *Handler) Featured(c *gin.Context) {
	h.runSearch(c, "featured", h.search.Featured)
}

func (h *Handler) runSearch(
	c *gin.Context,
	endpoint string,
	fn func(ctx context.Context, req search.Request) (*domain.Page, error),
) {
	start := time.Now()
	query := c.Request.URL.Query()

	page, err := func() (*domain.Page, error) {
		params, parseErr := search.ParamsFromValues(query)
		if parseErr != nil {
			return nil, parseErr
		}

		ctx := c.Request.Context()
		if h.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.timeout)
			defer cancel()
		}

		return fn(ctx, search.Request{
			Params: params,
			Caps:   capabilities(c),
			Region: region(c),
			Path:   c.Request.URL.Path,
			Query:  query,
		})
	}()

	if h.metrics != nil {
		h.metrics.Searches.WithLabelValues(endpoint, outcome(err)).Inc()
		h.metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// IndexTaskRequest asks for a batch of statistics records to be indexed.
type IndexTaskRequest struct {
	Kind  domain.TaskKind `binding:"required"       json:"kind"`
	IDs   []int64         `binding:"required,min=1" json:"ids"`
	Index string          `json:"index"`
}

// SubmitIndexTask handles POST /api/v1/stats/index.
func (h *Handler) SubmitIndexTask(c *gin.Context) {
	var req IndexTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, &domain.ValidationError{Field: "body", Message: err.Error()})
		return
	}
	if !isIndexingKind(req.Kind) {
		writeError(c, &domain.ValidationError{Field: "kind", Message: fmt.Sprintf("%q is not a statistics kind", req.Kind)})
		return
	}

	task, err := h.queue.Enqueue(c.Request.Context(), domain.Task{Kind: req.Kind, IDs: req.IDs, Index: req.Index})
	if err != nil {
		h.logger.Error("Failed to enqueue indexing task",
			infralogger.String("kind", string(req.Kind)),
			infralogger.Error(err),
		)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"tasks": []domain.Task{task}})
}

// TotalsTaskRequest asks for one global totals job, or every job of the
// date when Job is empty. Date defaults to today.
type TotalsTaskRequest struct {
	Job  string `json:"job"`
	Date string `json:"date"`
}

// SubmitTotals handles POST /api/v1/stats/totals.
func (h *Handler) SubmitTotals(c *gin.Context) {
	var req TotalsTaskRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, &domain.ValidationError{Field: "body", Message: err.Error()})
			return
		}
	}

	var date *domain.Date
	if req.Date != "" {
		parsed, err := domain.ParseDate(req.Date)
		if err != nil {
			writeError(c, err)
			return
		}
		date = &parsed
	}

	tasks, err := h.totalsTasks(c.Request.Context(), req.Job, date)
	if err != nil {
		writeError(c, err)
		return
	}

	enqueued, err := h.queue.EnqueueBatch(c.Request.Context(), tasks)
	if err != nil {
		h.logger.Error("Failed to enqueue global totals tasks",
			infralogger.Int("enqueued", len(enqueued)),
			infralogger.Int("planned", len(tasks)),
			infralogger.Error(err),
		)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"tasks": enqueued})
}

func (h *Handler) totalsTasks(ctx context.Context, job string, date *domain.Date) ([]domain.Task, error) {
	if job == "" {
		return h.planner.Plan(ctx, date)
	}
	name, err := totals.ParseJobName(job)
	if err != nil {
		return nil, err
	}
	return []domain.Task{{Kind: domain.KindGlobalTotals, Job: string(name), Date: date}}, nil
}

func isIndexingKind(kind domain.TaskKind) bool {
	for _, k := range domain.IndexingKinds {
		if k == kind {
			return true
		}
	}
	return false
}
