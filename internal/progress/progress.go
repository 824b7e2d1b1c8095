// Package progress reports per-item advancement of a pipeline stage.
//
// Stages call Reporter.Step after each frame or image. The log-backed
// reporter samples those calls into percentage buckets so long batches do not
// flood the log.
package progress

import (
	"log/slog"
	"strings"
	"sync"

	"photoprep/internal/logging"
)

// Reporter receives progress for one stage. total is negative when the
// number of items is not known in advance.
type Reporter interface {
	Step(stage string, done, total int, path string)
}

// Nop discards progress.
type Nop struct{}

// Step implements Reporter.
func (Nop) Step(string, int, int, string) {}

// OrNop returns r, or a no-op reporter when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop{}
	}
	return r
}

// Func adapts a plain function to Reporter.
type Func func(stage string, done, total int, path string)

// Step implements Reporter.
func (f Func) Step(stage string, done, total int, path string) { f(stage, done, total, path) }

// unknownTotalEvery is the logging interval, in items, when total is unknown.
const unknownTotalEvery = 100

// LogReporter writes sampled progress lines to a logger.
type LogReporter struct {
	mu      sync.Mutex
	logger  *slog.Logger
	sampler *Sampler
}

// NewLogReporter logs progress whenever the percentage crosses a bucket of
// bucketSize percent or the stage changes.
func NewLogReporter(logger *slog.Logger, bucketSize float64) *LogReporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogReporter{logger: logger, sampler: NewSampler(bucketSize)}
}

// Step implements Reporter.
func (r *LogReporter) Step(stage string, done, total int, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	percent := -1.0
	if total > 0 {
		percent = float64(done) * 100 / float64(total)
	}
	emit := r.sampler.ShouldLog(percent, stage)
	if !emit && (total > 0 || done%unknownTotalEvery != 0) {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldStage, stage),
		logging.Int("done", done),
		logging.String("path", path),
	}
	if total > 0 {
		attrs = append(attrs, logging.Int("total", total), logging.Float64("percent", float64(int(percent*10))/10))
	}
	r.logger.Info("stage progress", logging.Args(attrs...)...)
}

// Sampler suppresses repetitive progress events while preserving signal when
// the stage or percentage bucket changes.
type Sampler struct {
	bucketSize float64
	lastStage  string
	lastBucket int
}

// NewSampler constructs a sampler with the given bucket size in percent
// (default 10).
func NewSampler(bucketSize float64) *Sampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &Sampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether an event should be emitted. A negative percent
// means unknown and only stage changes emit.
func (s *Sampler) ShouldLog(percent float64, stage string) bool {
	if s == nil {
		return true
	}
	stage = strings.TrimSpace(stage)
	emit := false
	if stage != "" && stage != s.lastStage {
		s.lastStage = stage
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		if percent > 100 {
			percent = 100
		}
		bucket := int(percent / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}
