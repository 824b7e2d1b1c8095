package matting

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"photoprep/internal/imagecodec"
)

// RembgSegmenter shells out to the rembg CLI ("rembg i [-m model] in out").
type RembgSegmenter struct {
	Binary string
	Model  string
}

// Segment implements Segmenter.
func (r *RembgSegmenter) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	binary := strings.TrimSpace(r.Binary)
	if binary == "" {
		binary = "rembg"
	}
	workDir, err := os.MkdirTemp("", "photoprep-rembg-")
	if err != nil {
		return nil, fmt.Errorf("rembg workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	input := filepath.Join(workDir, "in.png")
	output := filepath.Join(workDir, "out.png")
	if err := imagecodec.Save(input, img); err != nil {
		return nil, err
	}

	args := []string{"i"}
	if model := strings.TrimSpace(r.Model); model != "" {
		args = append(args, "-m", model)
	}
	args = append(args, input, output)

	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("rembg: %w: %s", err, strings.TrimSpace(string(out)))
	}
	result, _, err := imagecodec.Load(output)
	if err != nil {
		return nil, fmt.Errorf("rembg output: %w", err)
	}
	return result, nil
}
