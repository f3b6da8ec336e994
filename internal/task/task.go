// Package task keeps the state and log tail of crawl runs started from the API.
package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/domain"
)

// DefaultLogTail is the number of log lines retained per task.
const DefaultLogTail = 100

// ErrNotFound is returned for unknown task ids.
var ErrNotFound = errors.New("task not found")

// Status of a task.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Request is what a caller asked to crawl.
type Request struct {
	Criteria  domain.SearchCriteria `json:"criteria"`
	MaxPages  int                   `json:"max_pages"`
	StartPage int                   `json:"start_page"`
	Mode      string                `json:"mode"`
}

// Task is one crawl run.
type Task struct {
	ID        string             `json:"id"`
	Status    Status             `json:"status"`
	Request   Request            `json:"request"`
	Reason    string             `json:"reason,omitempty"`
	Error     string             `json:"error,omitempty"`
	Pages     int                `json:"pages"`
	RowCount  int                `json:"row_count"`
	Rows      []domain.OutputRow `json:"rows,omitempty"`
	Logs      []string           `json:"logs"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// New creates a running task with a fresh id.
func New(req Request) Task {
	now := time.Now().UTC()
	return Task{
		ID:        uuid.NewString(),
		Status:    StatusRunning,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Done reports whether the task reached a terminal status.
func (t Task) Done() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Store persists tasks. Implementations must be safe for concurrent use.
type Store interface {
	Create(ctx context.Context, t Task) error
	Update(ctx context.Context, id string, fn func(*Task)) error
	Get(ctx context.Context, id string) (Task, error)
	AppendLog(ctx context.Context, id, line string) error
}
