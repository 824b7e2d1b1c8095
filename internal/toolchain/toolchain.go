package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"photoprep/internal/logging"
	"photoprep/internal/services"
)

const (
	// GPUFlag selects GPU processing in the reconstruction scripts.
	GPUFlag = "-1"
	// CPUFlag selects CPU processing in the reconstruction scripts.
	CPUFlag = "-2"

	stageName = "reconstruct"
	tailLimit = 4 * 1024
)

// Params are the reconstruction settings passed to the script.
type Params struct {
	Script       string
	TextureSize  int
	UseGPU       bool
	OutputFormat string
}

// GPUFlagValue returns the positional GPU/CPU sentinel.
func (p Params) GPUFlagValue() string {
	if p.UseGPU {
		return GPUFlag
	}
	return CPUFlag
}

// Args returns the positional argument list for a reconstruction run.
func (p Params) Args(projectPath, folderName string) []string {
	return []string{projectPath, folderName, strconv.Itoa(p.TextureSize), p.GPUFlagValue(), p.OutputFormat}
}

// ExitStatus describes a finished run.
type ExitStatus struct {
	Script   string
	Args     []string
	Code     int
	Duration time.Duration
}

// Success reports whether the script exited 0.
func (s ExitStatus) Success() bool { return s.Code == 0 }

// ExitError reports a non-zero exit.
type ExitError struct {
	Script string
	Code   int
	// Output holds the tail of the script's combined output.
	Output string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Script, e.Code)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// Is reports ExitError as a toolchain failure.
func (e *ExitError) Is(target error) bool { return target == services.ErrToolchainFailure }

// Command is a fully resolved process invocation.
type Command struct {
	Path   string
	Args   []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Executor abstracts process execution for testability.
type Executor interface {
	// Run executes cmd to completion and returns its exit code. A non-nil
	// error means the process could not be run at all.
	Run(ctx context.Context, cmd Command) (int, error)
	// Start launches cmd detached and returns without waiting.
	Start(cmd Command) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOutput mirrors script output to w in addition to capturing its tail.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.output = w }
}

// Runner invokes toolchain scripts.
type Runner struct {
	exec   Executor
	logger *slog.Logger
	output io.Writer
}

// NewRunner constructs a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{exec: processExecutor{}, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconstruct runs params.Script against folderName inside projectPath. A
// non-zero exit yields an *ExitError alongside the populated ExitStatus.
func (r *Runner) Reconstruct(ctx context.Context, projectPath, folderName string, params Params) (ExitStatus, error) {
	script := params.Script
	status := ExitStatus{Script: script, Args: params.Args(projectPath, folderName)}
	if strings.TrimSpace(projectPath) == "" || strings.TrimSpace(folderName) == "" {
		return status, services.Wrap(services.ErrInvalidParameter, stageName, "validate", "project path and folder name are required", nil)
	}
	if params.TextureSize <= 0 {
		return status, services.Wrap(services.ErrInvalidParameter, stageName, "validate",
			fmt.Sprintf("texture size must be positive, got %d", params.TextureSize), nil)
	}
	if err := EnsureExecutable(script); err != nil {
		return status, services.Wrap(services.ErrConfiguration, stageName, "prepare script", script, err)
	}

	logger := logging.WithContext(ctx, r.logger)
	logger.Info("reconstruction started",
		logging.String(logging.FieldEventType, "reconstruct_start"),
		logging.String("script", script),
		logging.Any("args", status.Args),
	)

	tail := &tailBuffer{limit: tailLimit}
	var sink io.Writer = tail
	if r.output != nil {
		sink = io.MultiWriter(tail, r.output)
	}
	start := time.Now()
	code, err := r.exec.Run(ctx, Command{Path: script, Args: status.Args, Stdout: sink, Stderr: sink})
	status.Duration = time.Since(start)
	if err != nil {
		return status, services.Wrap(services.ErrExternalTool, stageName, "run", script, err)
	}
	status.Code = code

	if code != 0 {
		exitErr := &ExitError{Script: script, Code: code, Output: strings.TrimSpace(tail.String())}
		logger.Error("reconstruction failed",
			logging.String(logging.FieldEventType, "reconstruct_failed"),
			logging.Int("exit_code", code),
			logging.Duration("duration", status.Duration),
			logging.String(logging.FieldErrorHint, "check the toolchain output above; the run is not retried"),
		)
		return status, exitErr
	}

	logger.Info("reconstruction completed",
		logging.String(logging.FieldEventType, "reconstruct_complete"),
		logging.Duration("duration", status.Duration),
	)
	return status, nil
}

// LaunchViewer starts the viewer script detached. The viewer's lifetime is
// not tracked.
func (r *Runner) LaunchViewer(ctx context.Context, script string, args ...string) error {
	if err := EnsureExecutable(script); err != nil {
		return services.Wrap(services.ErrConfiguration, "view", "prepare script", script, err)
	}
	if err := r.exec.Start(Command{Path: script, Args: args}); err != nil {
		return services.Wrap(services.ErrExternalTool, "view", "launch", script, err)
	}
	logging.WithContext(ctx, r.logger).Info("viewer launched",
		logging.String(logging.FieldEventType, "viewer_launched"),
		logging.String("script", script),
	)
	return nil
}

// EnsureExecutable verifies path is a regular file and adds the execute bits
// when the current user cannot run it.
func EnsureExecutable(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("script path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if unix.Access(path, unix.X_OK) == nil {
		return nil
	}
	if err := os.Chmod(path, info.Mode().Perm()|0o111); err != nil {
		return fmt.Errorf("make executable: %w", err)
	}
	return nil
}

type processExecutor struct{}

func (processExecutor) Run(ctx context.Context, c Command) (int, error) {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...) //nolint:gosec
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return exitErr.ExitCode(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, ctxErr
	}
	return -1, err
}

func (processExecutor) Start(c Command) error {
	cmd := exec.Command(c.Path, c.Args...) //nolint:gosec
	cmd.Dir = c.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
