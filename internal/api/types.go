package api

import (
	"errors"
	"time"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/config"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/task"
)

var (
	errNegativePages = errors.New("maxPages and startPage must not be negative")
	errUnknownMode   = errors.New("mode must be browser or api")
	errBadDate       = errors.New("dates must use YYYY-MM-DD")
)

// CrawlRequest is the body of POST /api/v1/crawl.
type CrawlRequest struct {
	Area      string `json:"area"`
	Title     string `json:"title"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	MaxPages  int    `json:"maxPages"`
	StartPage int    `json:"startPage"`
	Mode      string `json:"mode"`
}

// Defaults fill omitted request fields.
type Defaults struct {
	MaxPages  int
	StartPage int
	Mode      string
}

func (r CrawlRequest) toTask(d Defaults) (task.Request, error) {
	if r.MaxPages < 0 || r.StartPage < 0 {
		return task.Request{}, errNegativePages
	}
	for _, date := range []string{r.StartTime, r.EndTime} {
		if date == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			return task.Request{}, errBadDate
		}
	}

	req := task.Request{
		Criteria: domain.SearchCriteria{
			Title:     r.Title,
			StartDate: r.StartTime,
			EndDate:   r.EndTime,
			Region:    r.Area,
		}.WithDefaults(),
		MaxPages:  r.MaxPages,
		StartPage: r.StartPage,
		Mode:      r.Mode,
	}
	if req.MaxPages == 0 {
		req.MaxPages = d.MaxPages
	}
	if req.StartPage == 0 {
		req.StartPage = d.StartPage
	}
	if req.Mode == "" {
		req.Mode = d.Mode
	}
	if req.Mode != config.ModeBrowser && req.Mode != config.ModeAPI {
		return task.Request{}, errUnknownMode
	}
	return req, nil
}

// TaskResponse is the body of GET /api/v1/tasks/:id.
type TaskResponse struct {
	ID        string       `json:"task_id"`
	Status    task.Status  `json:"status"`
	Request   task.Request `json:"request"`
	Reason    string       `json:"reason,omitempty"`
	Error     string       `json:"error,omitempty"`
	Pages     int          `json:"pages"`
	RowCount  int          `json:"row_count"`
	Logs      []string     `json:"logs"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func newTaskResponse(t task.Task) TaskResponse {
	logs := t.Logs
	if logs == nil {
		logs = []string{}
	}
	return TaskResponse{
		ID:        t.ID,
		Status:    t.Status,
		Request:   t.Request,
		Reason:    t.Reason,
		Error:     t.Error,
		Pages:     t.Pages,
		RowCount:  t.RowCount,
		Logs:      logs,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// RowsResponse is the body of GET /api/v1/tasks/:id/rows.
type RowsResponse struct {
	ID    string             `json:"task_id"`
	Count int                `json:"count"`
	Rows  []domain.OutputRow `json:"rows"`
}
