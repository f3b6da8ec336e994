package task

import (
	"context"
	"time"
)

// sinkTimeout bounds a single log append.
const sinkTimeout = 5 * time.Second

// Sink writes rendered log lines into a task's log tail. Writes are best effort.
type Sink struct {
	store Store
	id    string
}

// NewSink binds a store to a task id.
func NewSink(store Store, id string) *Sink {
	return &Sink{store: store, id: id}
}

// WriteLine appends line to the task log, dropping it on store errors.
func (s *Sink) WriteLine(line string) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	_ = s.store.AppendLog(ctx, s.id, line)
}
