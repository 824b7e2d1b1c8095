// Package ffmpeg decodes video by piping raw RGB frames out of an ffmpeg
// subprocess. Stream metadata comes from ffprobe.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"photoprep/internal/frames"
	"photoprep/internal/video/ffprobe"
)

const maxStderr = 8 * 1024

// Opener launches ffmpeg for each opened video.
type Opener struct {
	FFmpeg  string
	FFprobe string
}

// Open implements frames.Opener.
func (o Opener) Open(ctx context.Context, path string) (frames.VideoSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	probe, err := ffprobe.Inspect(ctx, o.FFprobe, path)
	if err != nil {
		return nil, err
	}
	stream, ok := probe.VideoStream()
	if !ok {
		return nil, fmt.Errorf("%s has no video stream", path)
	}
	// ffmpeg auto-rotates, so rotated streams arrive with their display size.
	width, height := stream.DisplaySize()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%s reports invalid dimensions %dx%d", path, width, height)
	}

	binary := strings.TrimSpace(o.FFmpeg)
	if binary == "" {
		binary = "ffmpeg"
	}
	runCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(runCtx, binary, //nolint:gosec
		"-v", "error", "-nostdin", "-hide_banner",
		"-i", path,
		"-map", "0:v:0",
		"-fps_mode", "passthrough",
		"-f", "rawvideo", "-pix_fmt", "rgb24",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	s := &source{
		fps:    stream.FrameRate(),
		count:  stream.FrameCount(),
		bounds: image.Rect(0, 0, width, height),
		buf:    make([]byte, width*height*3),
		cmd:    cmd,
		stdout: stdout,
		cancel: cancel,
	}
	s.group.Go(func() error {
		_, err := io.Copy(&s.stderr, io.LimitReader(stderr, maxStderr))
		if err == nil {
			_, err = io.Copy(io.Discard, stderr)
		}
		return err
	})
	return s, nil
}

type source struct {
	fps    float64
	count  int
	bounds image.Rectangle
	buf    []byte

	cmd    *exec.Cmd
	stdout io.Reader
	stderr bytes.Buffer
	group  errgroup.Group
	cancel context.CancelFunc

	once    sync.Once
	waitErr error
}

func (s *source) FPS() float64    { return s.fps }
func (s *source) FrameCount() int { return s.count }

func (s *source) Read() (image.Image, error) {
	_, err := io.ReadFull(s.stdout, s.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if werr := s.wait(); werr != nil {
			return nil, werr
		}
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, errors.Join(errors.New("truncated frame"), s.wait())
	default:
		s.cancel()
		return nil, errors.Join(err, s.wait())
	}

	img := image.NewRGBA(s.bounds)
	for i, j := 0, 0; i < len(s.buf); i, j = i+3, j+4 {
		img.Pix[j] = s.buf[i]
		img.Pix[j+1] = s.buf[i+1]
		img.Pix[j+2] = s.buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

// Close stops ffmpeg if it is still running. Exit errors caused by the stop
// are not reported.
func (s *source) Close() error {
	s.cancel()
	_ = s.wait()
	return nil
}

func (s *source) wait() error {
	s.once.Do(func() {
		drainErr := s.group.Wait()
		err := s.cmd.Wait()
		s.cancel()
		if err != nil {
			msg := strings.TrimSpace(s.stderr.String())
			if msg != "" {
				s.waitErr = fmt.Errorf("ffmpeg: %w: %s", err, msg)
			} else {
				s.waitErr = fmt.Errorf("ffmpeg: %w", err)
			}
			return
		}
		if drainErr != nil {
			s.waitErr = fmt.Errorf("ffmpeg stderr: %w", drainErr)
		}
	})
	return s.waitErr
}
