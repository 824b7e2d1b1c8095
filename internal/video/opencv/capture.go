// Package opencv decodes video through OpenCV's VideoCapture.
package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"gocv.io/x/gocv"

	"photoprep/internal/frames"
)

// Opener opens videos with gocv.VideoCaptureFile.
type Opener struct{}

// Open implements frames.Opener.
func (Opener) Open(_ context.Context, path string) (frames.VideoSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, errors.New("capture did not open")
	}
	return &source{capture: capture, mat: gocv.NewMat()}, nil
}

type source struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	closed  bool
}

func (s *source) FPS() float64 {
	return s.capture.Get(gocv.VideoCaptureFPS)
}

func (s *source) FrameCount() int {
	count := s.capture.Get(gocv.VideoCaptureFrameCount)
	if count < 0 {
		return 0
	}
	return int(count)
}

func (s *source) Read() (image.Image, error) {
	if s.closed {
		return nil, io.EOF
	}
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, io.EOF
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

func (s *source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	matErr := s.mat.Close()
	return errors.Join(s.capture.Close(), matErr)
}
