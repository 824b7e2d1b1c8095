// Package opencvnet runs the BRIA RMBG matting network through OpenCV's DNN
// module.
package opencvnet

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"photoprep/internal/matting"
)

// Predictor wraps a loaded ONNX network. It is safe for sequential use from
// multiple goroutines.
type Predictor struct {
	mu   sync.Mutex
	net  gocv.Net
	size int
}

// Load reads the ONNX model at modelPath. It satisfies matting.PredictorLoader.
func Load(modelPath string, inputSize int, useCUDA bool) (matting.MaskPredictor, error) {
	if inputSize <= 0 {
		return nil, fmt.Errorf("invalid input size %d", inputSize)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, err
	}
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		_ = net.Close()
		return nil, fmt.Errorf("model %s could not be loaded", modelPath)
	}
	if useCUDA {
		if err := net.SetPreferableBackend(gocv.NetBackendCUDA); err != nil {
			_ = net.Close()
			return nil, fmt.Errorf("select cuda backend: %w", err)
		}
		if err := net.SetPreferableTarget(gocv.NetTargetCUDA); err != nil {
			_ = net.Close()
			return nil, fmt.Errorf("select cuda target: %w", err)
		}
	}
	return &Predictor{net: net, size: inputSize}, nil
}

// InputSize implements matting.MaskPredictor.
func (p *Predictor) InputSize() int { return p.size }

// Predict implements matting.MaskPredictor. Pixels are scaled to [0,1] and
// shifted by 0.5 before inference.
func (p *Predictor) Predict(ctx context.Context, input *image.RGBA) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mat, err := gocv.ImageToMatRGB(input)
	if err != nil {
		return nil, fmt.Errorf("convert input: %w", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(p.size, p.size), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.net.SetInput(blob, ""); err != nil {
		return nil, fmt.Errorf("set input: %w", err)
	}
	out := p.net.Forward("")
	defer out.Close()
	if out.Empty() {
		return nil, errors.New("network produced no output")
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	want := p.size * p.size
	if len(data) < want {
		return nil, fmt.Errorf("network output has %d values, want %d", len(data), want)
	}
	return append([]float32(nil), data[:want]...), nil
}

// Close releases the network.
func (p *Predictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.net.Close()
}
