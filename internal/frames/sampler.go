package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"path/filepath"

	"photoprep/internal/imagecodec"
	"photoprep/internal/imageset"
	"photoprep/internal/logging"
	"photoprep/internal/progress"
	"photoprep/internal/services"
)

const stageName = "extract"

// FrameName returns the file name for the n-th kept frame.
func FrameName(n int) string {
	return fmt.Sprintf("frame_%04d.png", n)
}

// Stride returns the sampling interval for a source rate and a requested
// output rate. Requests at or above the source rate yield 1.
func Stride(fps float64, targetRate int) int {
	if targetRate <= 0 || fps <= 0 {
		return 1
	}
	interval := int(math.Floor(fps / float64(targetRate)))
	if interval < 1 {
		return 1
	}
	return interval
}

// ExpectedCount returns how many frames a stream of total frames yields at
// the given stride.
func ExpectedCount(total, interval int) int {
	if total <= 0 {
		return 0
	}
	if interval < 1 {
		interval = 1
	}
	return (total + interval - 1) / interval
}

// ExtractError reports a fault that stopped extraction part way. Written
// frames remain on disk.
type ExtractError struct {
	Written int
	Path    string
	Err     error
}

func (e *ExtractError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("extracted %d frames before failing on %s: %v", e.Written, filepath.Base(e.Path), e.Err)
	}
	return fmt.Sprintf("extracted %d frames before failing: %v", e.Written, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// WriteFunc persists one frame.
type WriteFunc func(path string, img image.Image) error

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets the sampler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sampler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProgress injects a progress reporter.
func WithProgress(r progress.Reporter) Option {
	return func(s *Sampler) { s.progress = progress.OrNop(r) }
}

// WithWriter replaces the frame writer (primarily for tests).
func WithWriter(fn WriteFunc) Option {
	return func(s *Sampler) {
		if fn != nil {
			s.write = fn
		}
	}
}

// Sampler extracts frames from videos.
type Sampler struct {
	opener   Opener
	logger   *slog.Logger
	progress progress.Reporter
	write    WriteFunc
}

// NewSampler constructs a Sampler that opens sources through opener.
func NewSampler(opener Opener, opts ...Option) *Sampler {
	s := &Sampler{
		opener:   opener,
		logger:   logging.NewNop(),
		progress: progress.Nop{},
		write:    imagecodec.Save,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extract reads videoPath from the start and writes every stride-th frame
// into outputFolder. It returns the written paths in selection order. The
// source is closed on every return path.
func (s *Sampler) Extract(ctx context.Context, videoPath, outputFolder string, targetRate int) (imageset.Set, error) {
	if targetRate <= 0 {
		return nil, services.Wrap(services.ErrInvalidParameter, stageName, "validate",
			fmt.Sprintf("frame rate must be positive, got %d", targetRate), nil)
	}
	if s.opener == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "open", "no video decoder configured", nil)
	}

	source, err := s.opener.Open(ctx, videoPath)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, stageName, "open",
			fmt.Sprintf("could not open video %s", videoPath), err)
	}
	defer func() {
		if cerr := source.Close(); cerr != nil {
			s.logger.Debug("video close failed", logging.Error(cerr))
		}
	}()

	fps := source.FPS()
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return nil, services.Wrap(services.ErrMetadataUnavailable, stageName, "probe",
			fmt.Sprintf("unable to read frame rate of %s", videoPath), nil)
	}

	interval := Stride(fps, targetRate)
	total := source.FrameCount()
	expected := -1
	if total > 0 {
		expected = ExpectedCount(total, interval)
	}

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("frame extraction started",
		logging.String(logging.FieldEventType, "extract_start"),
		logging.String("video", videoPath),
		logging.String("output", outputFolder),
		logging.Float64("fps", fps),
		logging.Int("target_rate", targetRate),
		logging.Int("interval", interval),
		logging.Int("total_frames", total),
	)

	set := imageset.Set{}
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return set, &ExtractError{Written: len(set), Err: err}
		}
		frame, err := source.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return set, &ExtractError{Written: len(set), Err: services.Wrap(services.ErrSourceUnavailable, stageName, "decode",
				fmt.Sprintf("frame %d", index), err)}
		}
		if index%interval != 0 {
			continue
		}
		path := filepath.Join(outputFolder, FrameName(len(set)))
		if err := s.write(path, frame); err != nil {
			return set, &ExtractError{Written: len(set), Path: path, Err: err}
		}
		set = append(set, path)
		s.progress.Step(stageName, len(set), expected, path)
	}

	logger.Info("frame extraction completed",
		logging.String(logging.FieldEventType, "extract_complete"),
		logging.Int("frames", len(set)),
	)
	return set, nil
}
