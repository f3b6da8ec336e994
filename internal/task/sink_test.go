package task_test

import (
	"context"
	"testing"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
	"github.com/jonesrussell/north-cloud/intent-crawler/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSink_RunLogsLandInTaskTail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := task.NewMemoryStore(0)
	tk := task.New(task.Request{})
	require.NoError(t, store.Create(ctx, tk))

	log := logger.FromZap(zap.NewNop()).WithSink(task.NewSink(store, tk.ID))
	log.Info("Page processed", logger.Int("page", 1))
	log.Debug("below sink level")

	got, err := store.Get(ctx, tk.ID)
	require.NoError(t, err)
	require.Len(t, got.Logs, 1)
	assert.Contains(t, got.Logs[0], "Page processed")
	assert.Contains(t, got.Logs[0], `"page": 1`)
}

func TestSink_DropsLinesForUnknownTask(t *testing.T) {
	t.Parallel()

	sink := task.NewSink(task.NewMemoryStore(0), "missing")

	assert.NotPanics(t, func() { sink.WriteLine("lost") })
}
