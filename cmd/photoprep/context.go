package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"photoprep/internal/config"
	"photoprep/internal/frames"
	"photoprep/internal/logging"
	"photoprep/internal/matting"
	"photoprep/internal/pipeline"
	"photoprep/internal/progress"
	"photoprep/internal/provenance"
	"photoprep/internal/stagerun"
	"photoprep/internal/toolchain"
	"photoprep/internal/video/ffmpeg"
)

const progressBucket = 10

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = strings.ToLower(level)
			}
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// session owns the collaborators one command invocation needs. Close
// releases whatever was opened.
type session struct {
	cfg        *config.Config
	logger     *slog.Logger
	history    *provenance.Store
	segmenters *matting.Factory
	toolLog    *transcript
	stderr     io.Writer
}

func (c *commandContext) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	s := &session{
		cfg:        cfg,
		logger:     logger,
		segmenters: matting.NewFactory(cfg.Background, briaLoader()),
		stderr:     cmd.ErrOrStderr(),
	}
	history, err := provenance.Open(commandCtx(cmd), cfg.HistoryPath())
	if err != nil {
		logger.Warn("run history unavailable; continuing without it",
			logging.String(logging.FieldEventType, "history_unavailable"),
			logging.String("path", cfg.HistoryPath()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
		)
	} else {
		s.history = history
	}
	return s, nil
}

func (s *session) Close() error {
	var errs []error
	if s.segmenters != nil {
		errs = append(errs, s.segmenters.Close())
	}
	if s.history != nil {
		errs = append(errs, s.history.Close())
	}
	if s.toolLog != nil {
		errs = append(errs, s.toolLog.Close())
	}
	return errors.Join(errs...)
}

func (s *session) opener() frames.Opener {
	if s.cfg.Extraction.Source == config.SourceFFmpeg {
		return ffmpeg.Opener{FFmpeg: s.cfg.Tools.FFmpeg, FFprobe: s.cfg.Tools.FFprobe}
	}
	return openCVOpener()
}

func (s *session) reporter() progress.Reporter {
	return progress.NewLogReporter(logging.NewComponentLogger(s.logger, "progress"), progressBucket)
}

func (s *session) sampler() *frames.Sampler {
	return frames.NewSampler(s.opener(),
		frames.WithLogger(logging.NewComponentLogger(s.logger, "frames")),
		frames.WithProgress(s.reporter()),
	)
}

func (s *session) stages() *stagerun.Runner {
	return stagerun.New(
		stagerun.WithLogger(logging.NewComponentLogger(s.logger, "stagerun")),
		stagerun.WithProgress(s.reporter()),
	)
}

// toolchain returns a runner whose script output is mirrored to stderr and
// to a per-invocation transcript in the log directory.
func (s *session) toolchain() *toolchain.Runner {
	logger := logging.NewComponentLogger(s.logger, "toolchain")
	if s.toolLog == nil {
		s.toolLog = newTranscript(s.cfg.Paths.LogDir, s.cfg.Logging.RetentionDays, logger)
	}
	return toolchain.NewRunner(
		toolchain.WithLogger(logger),
		toolchain.WithOutput(io.MultiWriter(s.stderr, s.toolLog)),
	)
}

func (s *session) pipeline() *pipeline.Pipeline {
	return pipeline.New(s.cfg, pipeline.Dependencies{
		Sampler:    s.sampler(),
		Stages:     s.stages(),
		Segmenters: s.segmenters,
		Toolchain:  s.toolchain(),
		History:    s.history,
	}, logging.NewComponentLogger(s.logger, "pipeline"))
}

func commandCtx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
