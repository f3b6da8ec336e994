package logger

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Sink receives rendered log lines, one per entry.
type Sink interface {
	WriteLine(line string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(line string)

// WriteLine calls f(line).
func (f SinkFunc) WriteLine(line string) {
	f(line)
}

// sinkWriter bridges zapcore's WriteSyncer to a line-oriented Sink.
type sinkWriter struct {
	sink Sink
}

func (w sinkWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	if line != "" {
		w.sink.WriteLine(line)
	}
	return len(p), nil
}

func (w sinkWriter) Sync() error {
	return nil
}

// newSinkCore renders entries in console form without caller or stacktrace so the
// lines stay readable in a task log tail.
func newSinkCore(sink Sink, level zapcore.Level) zapcore.Core {
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sinkWriter{sink: sink}, level)
}
