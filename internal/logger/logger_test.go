package logger_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileLogger(t *testing.T, level string) (logger.Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crawler.log")
	log, err := logger.New(logger.Config{Level: level, Format: "json", OutputPaths: []string{path}})
	require.NoError(t, err)
	return log, path
}

func readLog(t *testing.T, log logger.Logger, path string) string {
	t.Helper()
	_ = log.Sync()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNew_LevelNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{level: "debug", wantDebug: true, wantInfo: true},
		{level: "WARNING", wantDebug: false, wantInfo: false},
		{level: "bogus", wantDebug: false, wantInfo: true},
		{level: "fatal", wantDebug: false, wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Parallel()

			log, path := newFileLogger(t, tt.level)
			log.Debug("debug line")
			log.Info("info line")
			out := readLog(t, log, path)

			assert.Equal(t, tt.wantDebug, strings.Contains(out, "debug line"))
			assert.Equal(t, tt.wantInfo, strings.Contains(out, "info line"))
		})
	}
}

func TestNew_JSONCarriesComponent(t *testing.T) {
	t.Parallel()

	log, path := newFileLogger(t, "info")
	log.With(logger.Component("pipeline")).Info("Run started", logger.Int("max_pages", 5))

	out := readLog(t, log, path)
	assert.Contains(t, out, `"component":"pipeline"`)
	assert.Contains(t, out, `"max_pages":5`)
	assert.Contains(t, out, `"msg":"Run started"`)
}
