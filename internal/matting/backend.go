package matting

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"

	"photoprep/internal/config"
	"photoprep/internal/services"
)

// Backend names a segmentation implementation.
type Backend string

const (
	BackendRembg    Backend = config.BackendRembg
	BackendBriaRMBG Backend = config.BackendBriaRMBG
)

// Backends lists every supported backend.
var Backends = []Backend{BackendRembg, BackendBriaRMBG}

// ParseBackend normalizes a user-provided backend name.
func ParseBackend(name string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(name))) {
	case BackendRembg:
		return BackendRembg, nil
	case BackendBriaRMBG:
		return BackendBriaRMBG, nil
	default:
		return "", services.Wrap(services.ErrInvalidParameter, "rmbg", "backend",
			fmt.Sprintf("unknown backend %q (want rembg or briarmbg)", name), nil)
	}
}

// Segmenter produces a copy of img whose alpha channel masks out the
// background.
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (image.Image, error)
}

// SegmenterFunc adapts a function to Segmenter.
type SegmenterFunc func(ctx context.Context, img image.Image) (image.Image, error)

// Segment implements Segmenter.
func (f SegmenterFunc) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	return f(ctx, img)
}

// PredictorLoader constructs a MaskPredictor from a model file.
type PredictorLoader func(modelPath string, inputSize int, useCUDA bool) (MaskPredictor, error)

// Factory builds and caches segmenters on first use.
type Factory struct {
	cfg    config.Background
	loader PredictorLoader

	mu      sync.Mutex
	cache   map[Backend]Segmenter
	closers []io.Closer
}

// NewFactory returns a Factory for the background settings. loader may be nil
// in builds without an inference runtime, in which case briarmbg is
// unavailable.
func NewFactory(cfg config.Background, loader PredictorLoader) *Factory {
	return &Factory{cfg: cfg, loader: loader, cache: make(map[Backend]Segmenter)}
}

// Segmenter returns the segmenter for backend, constructing it if needed.
func (f *Factory) Segmenter(backend Backend) (Segmenter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if seg, ok := f.cache[backend]; ok {
		return seg, nil
	}

	var seg Segmenter
	switch backend {
	case BackendRembg:
		seg = &RembgSegmenter{Binary: f.cfg.RembgBinary, Model: f.cfg.RembgModel}
	case BackendBriaRMBG:
		if f.loader == nil {
			return nil, services.Wrap(services.ErrConfiguration, "rmbg", "load model",
				"briarmbg backend is not available in this build", nil)
		}
		predictor, err := f.loader(f.cfg.BriaModelPath, f.cfg.BriaInputSize, f.cfg.UseCUDA)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "rmbg", "load model",
				fmt.Sprintf("load %s", f.cfg.BriaModelPath), err)
		}
		f.closers = append(f.closers, predictor)
		seg = NewBriaSegmenter(predictor)
	default:
		return nil, services.Wrap(services.ErrInvalidParameter, "rmbg", "backend",
			fmt.Sprintf("unknown backend %q", backend), nil)
	}
	f.cache[backend] = seg
	return seg, nil
}

// Close releases any loaded models.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, c := range f.closers {
		errs = append(errs, c.Close())
	}
	f.closers = nil
	f.cache = make(map[Backend]Segmenter)
	return errors.Join(errs...)
}
