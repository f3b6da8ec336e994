package task

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// lineRing is a fixed capacity ring of log lines.
type lineRing struct {
	lines []string
	head  int
	count int
}

func newLineRing(size int) *lineRing {
	return &lineRing{lines: make([]string, size)}
}

func (r *lineRing) write(line string) {
	size := len(r.lines)
	if r.count < size {
		r.lines[(r.head+r.count)%size] = line
		r.count++
		return
	}
	r.lines[r.head] = line
	r.head = (r.head + 1) % size
}

func (r *lineRing) readAll() []string {
	out := make([]string, r.count)
	for i := range r.count {
		out[i] = r.lines[(r.head+i)%len(r.lines)]
	}
	return out
}

type memoryEntry struct {
	task Task
	logs *lineRing
}

// MemoryStore keeps tasks in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	tasks   map[string]*memoryEntry
	logTail int
}

// NewMemoryStore creates a store retaining logTail lines per task.
func NewMemoryStore(logTail int) *MemoryStore {
	if logTail <= 0 {
		logTail = DefaultLogTail
	}
	return &MemoryStore{
		tasks:   make(map[string]*memoryEntry),
		logTail: logTail,
	}
}

func (s *MemoryStore) Create(_ context.Context, t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	entry := &memoryEntry{task: t, logs: newLineRing(s.logTail)}
	for _, line := range t.Logs {
		entry.logs.write(line)
	}
	entry.task.Logs = nil
	s.tasks[t.ID] = entry
	return nil
}

// Update applies fn to the stored task under the store lock.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	fn(&entry.task)
	entry.task.Logs = nil
	entry.task.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	t := entry.task
	t.Logs = entry.logs.readAll()
	return t, nil
}

func (s *MemoryStore) AppendLog(_ context.Context, id, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("append log %s: %w", id, ErrNotFound)
	}
	entry.logs.write(line)
	return nil
}
