package stagerun

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"

	"photoprep/internal/imagecodec"
	"photoprep/internal/imageset"
	"photoprep/internal/logging"
	"photoprep/internal/matting"
	"photoprep/internal/progress"
	"photoprep/internal/services"
	"photoprep/internal/stagepath"
)

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithProgress injects a progress reporter.
func WithProgress(p progress.Reporter) Option {
	return func(r *Runner) { r.progress = progress.OrNop(p) }
}

// Runner executes the resize and background-removal stages.
type Runner struct {
	logger   *slog.Logger
	progress progress.Reporter
}

// New constructs a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{logger: logging.NewNop(), progress: progress.Nop{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ScaledSize returns floor(w*percent/100) × floor(h*percent/100).
func ScaledSize(w, h, percent int) (int, int) {
	return w * percent / 100, h * percent / 100
}

// RemovedName returns the output file name for a background-removed image.
func RemovedName(path string) string {
	base := filepath.Base(path)
	return "rm_" + strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
}

// Resize scales every image in set by scalePercent with Lanczos resampling
// and writes it under the same file name into the resize stage folder.
func (r *Runner) Resize(ctx context.Context, set imageset.Set, scalePercent int) (Report, error) {
	const stage = string(stagepath.StageResize)
	if scalePercent <= 0 {
		return Report{Stage: stage}, services.Wrap(services.ErrInvalidParameter, stage, "validate",
			fmt.Sprintf("scale percent must be positive, got %d", scalePercent), nil)
	}
	return r.run(ctx, stage, set, func(_ context.Context, src image.Image) (image.Image, error) {
		b := src.Bounds()
		w, h := ScaledSize(b.Dx(), b.Dy(), scalePercent)
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("%dx%d at %d%% collapses to %dx%d", b.Dx(), b.Dy(), scalePercent, w, h)
		}
		return resize.Resize(uint(w), uint(h), src, resize.Lanczos3), nil
	}, filepath.Base)
}

// Thumbnails writes previews of every image in set, shrunk to fit
// maxW×maxH, into the thumbs folder beside the images folder.
func (r *Runner) Thumbnails(ctx context.Context, set imageset.Set, maxW, maxH int) (Report, error) {
	const stage = "thumbs"
	if maxW <= 0 || maxH <= 0 {
		return Report{Stage: stage}, services.Wrap(services.ErrInvalidParameter, stage, "validate",
			fmt.Sprintf("thumbnail box must be positive, got %dx%d", maxW, maxH), nil)
	}
	return r.run(ctx, stage, set, func(_ context.Context, src image.Image) (image.Image, error) {
		return Thumbnail(src, maxW, maxH), nil
	}, filepath.Base)
}

// RemoveBackground runs seg over every image in set and writes
// rm_<stem>.png files into the background-removal stage folder.
func (r *Runner) RemoveBackground(ctx context.Context, set imageset.Set, seg matting.Segmenter) (Report, error) {
	const stage = string(stagepath.StageRMBG)
	if seg == nil {
		return Report{Stage: stage}, services.Wrap(services.ErrConfiguration, stage, "validate", "no segmentation backend", nil)
	}
	return r.run(ctx, stage, set, seg.Segment, RemovedName)
}

type transformFunc func(ctx context.Context, src image.Image) (image.Image, error)

func (r *Runner) run(ctx context.Context, stage string, set imageset.Set, transform transformFunc, name func(string) string) (Report, error) {
	report := Report{Stage: stage, Output: imageset.Set{}}
	if len(set) == 0 {
		return report, nil
	}

	var (
		folder string
		err    error
	)
	if stage == "thumbs" {
		folder, err = stagepath.ThumbsFolder(set.Folder())
	} else {
		folder, err = stagepath.StageFolder(set.Folder(), stagepath.Stage(stage))
	}
	if err != nil {
		return report, services.Wrap(services.ErrExternalTool, stage, "prepare output", "create stage folder", err)
	}
	report.Folder = folder

	logger := logging.WithContext(ctx, r.logger)
	logger.Info("stage started",
		logging.String(logging.FieldEventType, stage+"_start"),
		logging.String("output", folder),
		logging.Int("images", len(set)),
	)

	for i, path := range set {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		target := filepath.Join(folder, name(path))
		if err := r.process(ctx, path, target, transform); err != nil {
			report.Failures = append(report.Failures, ItemFailure{Path: path, Err: err})
			logger.Warn("image failed; continuing",
				logging.String(logging.FieldEventType, "item_failed"),
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect or remove the file and rerun the stage"),
			)
		} else {
			report.Output = append(report.Output, target)
		}
		r.progress.Step(stage, i+1, len(set), path)
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, stage+"_complete"),
		logging.Int("succeeded", len(report.Output)),
		logging.Int("failed", len(report.Failures)),
	)
	return report, nil
}

func (r *Runner) process(ctx context.Context, path, target string, transform transformFunc) error {
	src, _, err := imagecodec.Load(path)
	if err != nil {
		return err
	}
	out, err := transform(ctx, src)
	if err != nil {
		return err
	}
	return imagecodec.Save(target, out)
}
