package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/pipeline"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/task"
)

// storeTimeout bounds task store writes made outside a request.
const storeTimeout = 5 * time.Second

// RunFunc executes one crawl. log already writes into the task's log tail.
type RunFunc func(ctx context.Context, req task.Request, log logger.Logger) pipeline.Result

// TaskHandler starts crawl runs and reports on them.
type TaskHandler struct {
	store    task.Store
	run      RunFunc
	timeout  time.Duration
	defaults Defaults
	log      logger.Logger

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// NewTaskHandler creates a handler. timeout bounds each run.
func NewTaskHandler(store task.Store, run RunFunc, timeout time.Duration, defaults Defaults, log logger.Logger) *TaskHandler {
	if log == nil {
		log = logger.NewNop()
	}
	if timeout <= 0 {
		timeout = config.DefaultRunTimeout
	}
	return &TaskHandler{
		store:    store,
		run:      run,
		timeout:  timeout,
		defaults: defaults,
		log:      log.With(logger.Component("api")),
	}
}

// StartCrawl handles POST /api/v1/crawl
func (h *TaskHandler) StartCrawl(c *gin.Context) {
	var body CrawlRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "Invalid request payload")
		return
	}
	req, err := body.toTask(h.defaults)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if !h.begin() {
		respondError(c, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	t := task.New(req)
	if err := h.store.Create(c.Request.Context(), t); err != nil {
		h.wg.Done()
		h.log.Error("Failed to create task", logger.Error(err))
		respondInternalError(c, "Failed to create task")
		return
	}

	go h.execute(t)

	c.JSON(http.StatusAccepted, gin.H{"task_id": t.ID, "status": t.Status})
}

// GetTask handles GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	t, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(t))
}

// GetRows handles GET /api/v1/tasks/:id/rows
func (h *TaskHandler) GetRows(c *gin.Context) {
	t, ok := h.lookup(c)
	if !ok {
		return
	}
	if !t.Done() {
		respondError(c, http.StatusConflict, "task is still running")
		return
	}
	rows := t.Rows
	if rows == nil {
		rows = []domain.OutputRow{}
	}
	c.JSON(http.StatusOK, RowsResponse{ID: t.ID, Count: len(rows), Rows: rows})
}

// Health handles GET /health
func (h *TaskHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Wait blocks until every started run has finished.
func (h *TaskHandler) Wait() {
	h.wg.Wait()
}

// Drain refuses new runs, then waits for the started ones.
func (h *TaskHandler) Drain() {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()
	h.wg.Wait()
}

// begin reserves a run slot unless the handler is draining.
func (h *TaskHandler) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.wg.Add(1)
	return true
}

func (h *TaskHandler) lookup(c *gin.Context) (task.Task, bool) {
	id := c.Param("id")
	t, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, task.ErrNotFound) {
		respondNotFound(c, "task")
		return task.Task{}, false
	}
	if err != nil {
		h.log.Error("Failed to read task", logger.String("task_id", id), logger.Error(err))
		respondInternalError(c, "Failed to read task")
		return task.Task{}, false
	}
	return t, true
}

func (h *TaskHandler) execute(t task.Task) {
	defer h.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	runLog := h.log.WithSink(task.NewSink(h.store, t.ID)).With(logger.String("task_id", t.ID))
	runLog.Info("Task started",
		logger.String("mode", t.Request.Mode),
		logger.Int("max_pages", t.Request.MaxPages),
		logger.Int("start_page", t.Request.StartPage),
	)

	result := h.safeRun(ctx, t.Request, runLog)

	updateCtx, updateCancel := context.WithTimeout(context.Background(), storeTimeout)
	defer updateCancel()
	err := h.store.Update(updateCtx, t.ID, func(stored *task.Task) {
		stored.Status = task.StatusCompleted
		if result.Failed() {
			stored.Status = task.StatusFailed
			stored.Error = result.Err.Error()
		}
		stored.Reason = string(result.Reason)
		stored.Pages = result.PagesVisited
		stored.Rows = result.Rows
		stored.RowCount = len(result.Rows)
	})
	if err != nil {
		h.log.Error("Failed to store task result", logger.String("task_id", t.ID), logger.Error(err))
		return
	}
	runLog.Info("Task finished",
		logger.String("reason", string(result.Reason)),
		logger.Int("rows", len(result.Rows)),
		logger.Bool("failed", result.Failed()),
	)
}

func (h *TaskHandler) safeRun(ctx context.Context, req task.Request, log logger.Logger) (res pipeline.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Run panicked", logger.Any("panic", r))
			res = pipeline.Result{Reason: pipeline.ReasonSourceError, Err: fmt.Errorf("run panicked: %v", r)}
		}
	}()
	return h.run(ctx, req, log)
}
