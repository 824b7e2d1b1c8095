package frames_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"testing"

	"photoprep/internal/frames"
	"photoprep/internal/imageset"
	"photoprep/internal/services"
	"photoprep/internal/stagepath"
)

type fakeSource struct {
	fps    float64
	total  int
	next   int
	closed bool
}

func (f *fakeSource) FPS() float64    { return f.fps }
func (f *fakeSource) FrameCount() int { return f.total }
func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSource) Read() (image.Image, error) {
	if f.next >= f.total {
		return nil, io.EOF
	}
	f.next++
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func openerFor(src *fakeSource) frames.Opener {
	return frames.OpenerFunc(func(context.Context, string) (frames.VideoSource, error) {
		return src, nil
	})
}

func TestExtractEndToEndLayout(t *testing.T) {
	out := t.TempDir()
	video := "/videos/bust.mp4"
	folder, err := stagepath.VideoFolder(out, video)
	if err != nil {
		t.Fatalf("VideoFolder: %v", err)
	}

	src := &fakeSource{fps: 30, total: 300}
	sampler := frames.NewSampler(openerFor(src))
	set, err := sampler.Extract(context.Background(), video, folder, 6)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if len(set) != 60 {
		t.Fatalf("expected 60 frames, got %d", len(set))
	}
	for i, path := range set {
		want := filepath.Join(out, "bust", "images", fmt.Sprintf("frame_%04d.png", i))
		if path != want {
			t.Fatalf("frame %d: got %q want %q", i, path, want)
		}
	}
	if filepath.Base(set[59]) != "frame_0059.png" {
		t.Fatalf("unexpected last frame %q", set[59])
	}
	if !src.closed {
		t.Fatal("expected source to be closed")
	}

	scanned, err := imageset.Scan(folder)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scanned.Len() != 60 {
		t.Fatalf("expected rescanned set of 60, got %d", scanned.Len())
	}
}

func TestExtractCounts(t *testing.T) {
	cases := []struct {
		name   string
		fps    float64
		total  int
		target int
		want   int
	}{
		{"target above fps keeps every frame", 24, 50, 30, 50},
		{"target equal fps keeps every frame", 24, 50, 24, 50},
		{"fractional fps", 29.97, 100, 7, 25},
		{"partial final interval", 30, 301, 6, 61},
		{"single frame", 30, 1, 2, 1},
		{"empty source", 30, 0, 2, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var written []string
			src := &fakeSource{fps: tc.fps, total: tc.total}
			sampler := frames.NewSampler(openerFor(src), frames.WithWriter(func(path string, _ image.Image) error {
				written = append(written, path)
				return nil
			}))
			set, err := sampler.Extract(context.Background(), "clip.mp4", "out", tc.target)
			if err != nil {
				t.Fatalf("Extract returned error: %v", err)
			}
			if len(set) != tc.want || len(written) != tc.want {
				t.Fatalf("expected %d frames, got set=%d written=%d", tc.want, len(set), len(written))
			}
			if want := frames.ExpectedCount(tc.total, frames.Stride(tc.fps, tc.target)); want != tc.want {
				t.Fatalf("ExpectedCount=%d disagrees with %d", want, tc.want)
			}
		})
	}
}

func TestExtractOpenFailure(t *testing.T) {
	opener := frames.OpenerFunc(func(context.Context, string) (frames.VideoSource, error) {
		return nil, errors.New("no such file")
	})
	_, err := frames.NewSampler(opener).Extract(context.Background(), "missing.mp4", t.TempDir(), 6)
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
}

func TestExtractMissingFPS(t *testing.T) {
	src := &fakeSource{fps: 0, total: 10}
	_, err := frames.NewSampler(openerFor(src)).Extract(context.Background(), "clip.mp4", t.TempDir(), 6)
	if !errors.Is(err, services.ErrMetadataUnavailable) {
		t.Fatalf("expected metadata unavailable, got %v", err)
	}
	if !src.closed {
		t.Fatal("expected source to be closed after metadata failure")
	}
}

func TestExtractInvalidRate(t *testing.T) {
	src := &fakeSource{fps: 30, total: 10}
	_, err := frames.NewSampler(openerFor(src)).Extract(context.Background(), "clip.mp4", t.TempDir(), 0)
	if !errors.Is(err, services.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
}

func TestExtractWriteFailureReportsCount(t *testing.T) {
	src := &fakeSource{fps: 10, total: 10}
	calls := 0
	writeErr := errors.New("disk full")
	sampler := frames.NewSampler(openerFor(src), frames.WithWriter(func(string, image.Image) error {
		calls++
		if calls == 3 {
			return writeErr
		}
		return nil
	}))

	set, err := sampler.Extract(context.Background(), "clip.mp4", "out", 10)
	var extractErr *frames.ExtractError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractError, got %v", err)
	}
	if extractErr.Written != 2 || len(set) != 2 {
		t.Fatalf("expected 2 frames written before failure, got %d (set %d)", extractErr.Written, len(set))
	}
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if !src.closed {
		t.Fatal("expected source to be closed after write failure")
	}
}

func TestExtractHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{fps: 10, total: 100}
	sampler := frames.NewSampler(openerFor(src), frames.WithWriter(func(path string, _ image.Image) error {
		if filepath.Base(path) == "frame_0004.png" {
			cancel()
		}
		return nil
	}))

	set, err := sampler.Extract(ctx, "clip.mp4", "out", 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(set) != 5 {
		t.Fatalf("expected partial output of 5 frames, got %d", len(set))
	}
}

func TestStride(t *testing.T) {
	cases := []struct {
		fps    float64
		target int
		want   int
	}{
		{30, 6, 5},
		{30, 7, 4},
		{30, 60, 1},
		{29.97, 30, 1},
		{60, 1, 60},
	}
	for _, tc := range cases {
		if got := frames.Stride(tc.fps, tc.target); got != tc.want {
			t.Fatalf("Stride(%v, %d) = %d, want %d", tc.fps, tc.target, got, tc.want)
		}
	}
}

func TestFrameNamesSortLexicographically(t *testing.T) {
	prev := frames.FrameName(0)
	for i := 1; i < 1000; i++ {
		name := frames.FrameName(i)
		if name <= prev {
			t.Fatalf("%q does not sort after %q", name, prev)
		}
		prev = name
	}
}
