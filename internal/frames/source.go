package frames

import (
	"context"
	"image"
)

// VideoSource is a sequentially readable stream of decoded frames.
type VideoSource interface {
	// FPS reports the intrinsic frame rate, or 0 when it is unknown.
	FPS() float64
	// FrameCount reports the container's frame count, or 0 when unknown.
	FrameCount() int
	// Read decodes the next frame. It returns io.EOF once the stream is
	// exhausted.
	Read() (image.Image, error)
	Close() error
}

// Opener opens a VideoSource for the given path.
type Opener interface {
	Open(ctx context.Context, path string) (VideoSource, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (VideoSource, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, path string) (VideoSource, error) {
	return f(ctx, path)
}
