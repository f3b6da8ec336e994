package logger_test

import (
	"sync"
	"testing"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) WriteLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func TestWithSink_ForwardsInfoAndAbove(t *testing.T) {
	t.Parallel()

	collector := &lineCollector{}
	log := logger.FromZap(zap.NewNop()).WithSink(collector)

	log.Debug("hidden")
	log.Info("page processed", logger.Int("page", 3))
	log.Warn("rescue attempt")

	require.Len(t, collector.lines, 2)
	assert.Contains(t, collector.lines[0], "INFO")
	assert.Contains(t, collector.lines[0], "page processed")
	assert.Contains(t, collector.lines[0], `"page": 3`)
	assert.Contains(t, collector.lines[1], "WARN")
}

func TestWithSink_KeepsFieldsFromWith(t *testing.T) {
	t.Parallel()

	collector := &lineCollector{}
	log := logger.FromZap(zap.NewNop()).
		WithSink(collector).
		With(logger.Component("pipeline"))

	log.Info("run started")

	require.Len(t, collector.lines, 1)
	assert.Contains(t, collector.lines[0], "pipeline")
}

func TestNop_WithSinkDiscards(t *testing.T) {
	t.Parallel()

	collector := &lineCollector{}
	log := logger.NewNop().WithSink(collector)
	log.Info("nothing")

	assert.Empty(t, collector.lines)
}

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	cfg := logger.Config{Format: "xml"}
	cfg.SetDefaults()

	assert.Equal(t, logger.DefaultLevel, cfg.Level)
	assert.Equal(t, logger.DefaultFormat, cfg.Format)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
}
