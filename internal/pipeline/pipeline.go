package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"photoprep/internal/config"
	"photoprep/internal/frames"
	"photoprep/internal/imageset"
	"photoprep/internal/logging"
	"photoprep/internal/matting"
	"photoprep/internal/provenance"
	"photoprep/internal/services"
	"photoprep/internal/stagepath"
	"photoprep/internal/stagerun"
	"photoprep/internal/toolchain"
)

// SegmenterSource hands out segmentation backends on demand.
type SegmenterSource interface {
	Segmenter(backend matting.Backend) (matting.Segmenter, error)
}

// Options selects the input and the stages of one run.
type Options struct {
	// Video is extracted when set; otherwise Images is scanned.
	Video  string
	Images string

	Params config.Pipeline

	Resize           bool
	RemoveBackground bool
	Reconstruct      bool
	View             bool
}

// Result describes a finished run.
type Result struct {
	RunID   string
	Folder  string
	Set     imageset.Set
	Reports []stagerun.Report
	Exit    *toolchain.ExitStatus
}

// Dependencies are the collaborators a Pipeline drives.
type Dependencies struct {
	Sampler    *frames.Sampler
	Stages     *stagerun.Runner
	Segmenters SegmenterSource
	Toolchain  *toolchain.Runner
	// History is optional; when nil nothing is recorded.
	History *provenance.Store
}

// Pipeline runs stages against one configuration.
type Pipeline struct {
	cfg    *config.Config
	deps   Dependencies
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Pipeline.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{cfg: cfg, deps: deps, logger: logger, now: time.Now}
}

// Run executes the requested stages in order: extract or scan, resize,
// background removal, reconstruction, viewer.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := p.validate(opts); err != nil {
		return nil, err
	}

	lock, err := acquireLock(p.cfg.Paths.OutputDir)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "lock", p.cfg.Paths.OutputDir, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	result := &Result{RunID: uuid.NewString()}
	ctx = services.WithRunID(ctx, result.RunID)
	logger := logging.WithContext(ctx, p.logger)

	source := opts.Video
	if source == "" {
		source = opts.Images
	}
	p.beginRun(ctx, provenance.Run{
		ID:            result.RunID,
		Source:        source,
		FrameRate:     opts.Params.FrameRate,
		ResizePercent: opts.Params.ResizePercent,
		Backend:       opts.Params.Backend,
		StartedAt:     p.now(),
	})
	logger.Info("pipeline run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("source", source),
	)

	runErr := p.run(ctx, opts, result)
	p.finishRun(ctx, result.RunID, runErr)
	if runErr != nil {
		logger.Error("pipeline run failed",
			logging.String(logging.FieldEventType, "run_failed"),
			logging.Error(runErr),
		)
		return result, runErr
	}
	logger.Info("pipeline run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("folder", result.Folder),
		logging.Int("images", len(result.Set)),
	)
	return result, nil
}

func (p *Pipeline) validate(opts Options) error {
	if strings.TrimSpace(opts.Video) == "" && strings.TrimSpace(opts.Images) == "" {
		return services.Wrap(services.ErrInvalidParameter, "pipeline", "validate", "a video or an images folder is required", nil)
	}
	if opts.Video != "" && opts.Params.FrameRate <= 0 {
		return services.Wrap(services.ErrInvalidParameter, "pipeline", "validate",
			fmt.Sprintf("frame rate must be positive, got %d", opts.Params.FrameRate), nil)
	}
	if opts.Resize && opts.Params.ResizePercent <= 0 {
		return services.Wrap(services.ErrInvalidParameter, "pipeline", "validate",
			fmt.Sprintf("scale percent must be positive, got %d", opts.Params.ResizePercent), nil)
	}
	if opts.RemoveBackground {
		if _, err := matting.ParseBackend(opts.Params.Backend); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, opts Options, result *Result) error {
	if opts.Video != "" {
		if err := p.extract(ctx, opts, result); err != nil {
			return err
		}
	} else {
		if err := p.scan(opts.Images, result); err != nil {
			return err
		}
	}

	if opts.Resize {
		percent := opts.Params.ResizePercent
		if err := p.batch(ctx, stagepath.StageResize, result, func(ctx context.Context, set imageset.Set) (stagerun.Report, error) {
			return p.deps.Stages.Resize(ctx, set, percent)
		}); err != nil {
			return err
		}
	}

	if opts.RemoveBackground {
		backend, _ := matting.ParseBackend(opts.Params.Backend)
		seg, err := p.deps.Segmenters.Segmenter(backend)
		if err != nil {
			return err
		}
		if err := p.batch(ctx, stagepath.StageRMBG, result, func(ctx context.Context, set imageset.Set) (stagerun.Report, error) {
			return p.deps.Stages.RemoveBackground(ctx, set, seg)
		}); err != nil {
			return err
		}
	}

	if opts.Reconstruct {
		if err := p.reconstruct(ctx, result); err != nil {
			return err
		}
	}

	if opts.View {
		return p.deps.Toolchain.LaunchViewer(ctx, p.cfg.ScriptPath(p.cfg.Reconstruction.ViewerScript))
	}
	return nil
}

func (p *Pipeline) extract(ctx context.Context, opts Options, result *Result) error {
	ctx = services.WithStage(ctx, string(stagepath.StageExtract))
	started := p.now()
	folder, err := stagepath.VideoFolder(p.cfg.Paths.OutputDir, opts.Video)
	if err != nil {
		return services.Wrap(services.ErrValidation, string(stagepath.StageExtract), "prepare output", opts.Video, err)
	}
	set, err := p.deps.Sampler.Extract(ctx, opts.Video, folder, opts.Params.FrameRate)
	record := provenance.StageOutput{
		RunID:        result.RunID,
		Stage:        string(stagepath.StageExtract),
		InputFolder:  opts.Video,
		OutputFolder: folder,
		Succeeded:    len(set),
		StartedAt:    started,
	}
	if err != nil {
		record.Detail = err.Error()
		p.recordStage(ctx, record)
		return err
	}
	p.recordStage(ctx, record)
	if len(set) == 0 {
		return services.Wrap(services.ErrSourceUnavailable, string(stagepath.StageExtract), "decode",
			fmt.Sprintf("no frames decoded from %s", opts.Video), nil)
	}
	result.Folder = folder
	result.Set = set
	return nil
}

func (p *Pipeline) scan(folder string, result *Result) error {
	set, err := imageset.Scan(folder)
	if err != nil {
		return services.Wrap(services.ErrValidation, "scan", "walk", folder, err)
	}
	if len(set) == 0 {
		return services.Wrap(services.ErrValidation, "scan", "walk", fmt.Sprintf("no images found in %s", folder), nil)
	}
	// Stages derive their output from the folder holding the set, which is
	// deeper than the requested folder when every image sits in a subfolder.
	result.Folder = set.Folder()
	p.logger.Debug("images scanned",
		logging.String("requested", filepath.Clean(folder)),
		logging.String("folder", result.Folder),
		logging.Int("images", len(set)),
	)
	result.Set = set
	return nil
}

type batchFunc func(ctx context.Context, set imageset.Set) (stagerun.Report, error)

func (p *Pipeline) batch(ctx context.Context, stage stagepath.Stage, result *Result, fn batchFunc) error {
	ctx = services.WithStage(ctx, string(stage))
	started := p.now()
	report, err := fn(ctx, result.Set)
	result.Reports = append(result.Reports, report)

	record := provenance.StageOutput{
		RunID:        result.RunID,
		Stage:        string(stage),
		InputFolder:  result.Folder,
		OutputFolder: report.Folder,
		Succeeded:    len(report.Output),
		Failed:       len(report.Failures),
		StartedAt:    started,
	}
	if err != nil {
		record.Detail = err.Error()
	} else if ferr := report.Err(); ferr != nil {
		record.Detail = ferr.Error()
	}
	p.recordStage(ctx, record)

	if err != nil {
		return err
	}
	if len(report.Output) == 0 {
		return services.Wrap(services.ErrItemFailure, string(stage), "batch",
			fmt.Sprintf("all %d images failed", len(report.Failures)), report.Err())
	}
	result.Folder = report.Folder
	result.Set = report.Output
	return nil
}

func (p *Pipeline) reconstruct(ctx context.Context, result *Result) error {
	ctx = services.WithStage(ctx, "reconstruct")
	started := p.now()
	project, folder := stagepath.ProjectSplit(result.Folder)
	params := toolchain.Params{
		Script:       p.cfg.ReconstructionScript(),
		TextureSize:  p.cfg.Reconstruction.TextureSize,
		UseGPU:       p.cfg.Reconstruction.UseGPU,
		OutputFormat: p.cfg.Reconstruction.OutputFormat,
	}
	status, err := p.deps.Toolchain.Reconstruct(ctx, project, folder, params)
	result.Exit = &status

	record := provenance.StageOutput{
		RunID:       result.RunID,
		Stage:       "reconstruct",
		InputFolder: result.Folder,
		StartedAt:   started,
	}
	var exitErr *toolchain.ExitError
	if err == nil || errors.As(err, &exitErr) {
		code := status.Code
		record.ExitCode = &code
	}
	if err != nil {
		record.Detail = err.Error()
	}
	p.recordStage(ctx, record)
	return err
}

func (p *Pipeline) beginRun(ctx context.Context, run provenance.Run) {
	if p.deps.History == nil {
		return
	}
	if err := p.deps.History.BeginRun(ctx, run); err != nil {
		p.logger.Warn("failed to record run start", logging.Error(err))
	}
}

func (p *Pipeline) finishRun(ctx context.Context, id string, runErr error) {
	if p.deps.History == nil {
		return
	}
	if err := p.deps.History.FinishRun(context.WithoutCancel(ctx), id, runErr); err != nil {
		p.logger.Warn("failed to record run result", logging.Error(err))
	}
}

func (p *Pipeline) recordStage(ctx context.Context, out provenance.StageOutput) {
	if p.deps.History == nil {
		return
	}
	out.FinishedAt = p.now()
	if err := p.deps.History.RecordStage(context.WithoutCancel(ctx), out); err != nil {
		p.logger.Warn("failed to record stage output", logging.String("stage", out.Stage), logging.Error(err))
	}
}
