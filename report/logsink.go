package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/sarchlab/viewperf/logging"
	"github.com/sarchlab/viewperf/span"
)

// LogFormat selects how a LogSink renders a traversal.
type LogFormat int

// The log formats.
const (
	// LogTree logs the span tree.
	LogTree LogFormat = iota

	// LogViews logs the per-view cost table.
	LogViews
)

// Thresholds select the level a traversal is logged at from its duration. A
// traversal longer than Error is logged as an error, longer than Warn as a
// warning, longer than Info as info and at debug level otherwise.
type Thresholds struct {
	Info  time.Duration
	Warn  time.Duration
	Error time.Duration
}

// DefaultThresholds are based on a 60 Hz frame budget.
var DefaultThresholds = Thresholds{
	Info:  time.Millisecond,
	Warn:  16 * time.Millisecond,
	Error: 33 * time.Millisecond,
}

// Level returns the level for a traversal of duration d.
func (t Thresholds) Level(d time.Duration) slog.Level {
	switch {
	case d > t.Error:
		return slog.LevelError
	case d > t.Warn:
		return slog.LevelWarn
	case d > t.Info:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// LogSink writes a report of every traversal to a logger. Long reports are
// split into several records.
type LogSink struct {
	logger      *slog.Logger
	format      LogFormat
	thresholds  Thresholds
	segmentSize int
}

// LogSinkBuilder can build LogSinks.
type LogSinkBuilder struct {
	logger      *slog.Logger
	format      LogFormat
	thresholds  Thresholds
	segmentSize int
}

// MakeLogSinkBuilder creates a LogSinkBuilder with default parameters.
func MakeLogSinkBuilder() LogSinkBuilder {
	return LogSinkBuilder{
		format:      LogTree,
		thresholds:  DefaultThresholds,
		segmentSize: DefaultSegmentSize,
	}
}

// WithLogger sets the logger to write to.
func (b LogSinkBuilder) WithLogger(logger *slog.Logger) LogSinkBuilder {
	b.logger = logger
	return b
}

// WithFormat sets how traversals are rendered.
func (b LogSinkBuilder) WithFormat(format LogFormat) LogSinkBuilder {
	b.format = format
	return b
}

// WithThresholds sets the durations that select the log level.
func (b LogSinkBuilder) WithThresholds(t Thresholds) LogSinkBuilder {
	b.thresholds = t
	return b
}

// WithSegmentSize sets the maximum length of one log record.
func (b LogSinkBuilder) WithSegmentSize(size int) LogSinkBuilder {
	b.segmentSize = size
	return b
}

// Build creates a LogSink.
func (b LogSinkBuilder) Build() *LogSink {
	logger := b.logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &LogSink{
		logger:      logger.With("component", "viewperf"),
		format:      b.format,
		thresholds:  b.thresholds,
		segmentSize: b.segmentSize,
	}
}

// OnTraversalComplete logs the traversal.
func (s *LogSink) OnTraversalComplete(t *span.Traversal) {
	level := s.thresholds.Level(t.Duration())

	ctx := context.Background()
	if !s.logger.Enabled(ctx, level) {
		return
	}

	var body string

	switch s.format {
	case LogViews:
		body = FormatViews(t)
	default:
		body = FormatTree(t)
	}

	segments := Segment(body, s.segmentSize)
	for i, seg := range segments {
		s.logger.Log(ctx, level, "traversal",
			slog.Uint64("traversal", t.ID),
			slog.Uint64("thread", t.Thread),
			slog.String("status", t.Status.String()),
			slog.Duration("duration", t.Duration()),
			slog.Int("segment", i),
			slog.String("report", seg),
		)
	}
}
