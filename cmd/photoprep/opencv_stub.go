//go:build noopencv

package main

import (
	"context"
	"errors"
	"fmt"

	"photoprep/internal/frames"
	"photoprep/internal/matting"
	"photoprep/internal/services"
)

var errNoOpenCV = errors.New("built with -tags noopencv")

func openCVOpener() frames.Opener {
	return frames.OpenerFunc(func(_ context.Context, path string) (frames.VideoSource, error) {
		return nil, services.Wrap(services.ErrSourceUnavailable, "extract", "open", fmt.Sprintf("%s: set extraction.source = \"ffmpeg\"", path), errNoOpenCV)
	})
}

// briaLoader returns nil so the briarmbg backend reports itself unavailable.
func briaLoader() matting.PredictorLoader { return nil }
