package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateResize(); err != nil {
		return err
	}
	if err := c.validateBackground(); err != nil {
		return err
	}
	if err := c.validateReconstruction(); err != nil {
		return err
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if c.Extraction.FrameRate <= 0 {
		return errors.New("extraction.frame_rate must be positive")
	}
	switch c.Extraction.Source {
	case SourceOpenCV, SourceFFmpeg:
		return nil
	default:
		return fmt.Errorf("extraction.source must be %q or %q, got %q", SourceOpenCV, SourceFFmpeg, c.Extraction.Source)
	}
}

func (c *Config) validateResize() error {
	if c.Resize.ScalePercent <= 0 {
		return errors.New("resize.scale_percent must be positive")
	}
	return nil
}

func (c *Config) validateBackground() error {
	if !IsBackend(c.Background.Backend) {
		return fmt.Errorf("background.backend must be %q or %q, got %q", BackendRembg, BackendBriaRMBG, c.Background.Backend)
	}
	if c.Background.BriaInputSize <= 0 {
		return errors.New("background.briarmbg_size must be positive")
	}
	return nil
}

func (c *Config) validateReconstruction() error {
	switch c.Reconstruction.Mode {
	case ModePointCloud, ModeModel:
	default:
		return fmt.Errorf("reconstruction.mode must be %q or %q, got %q", ModePointCloud, ModeModel, c.Reconstruction.Mode)
	}
	if !slices.Contains(TextureSizes, c.Reconstruction.TextureSize) {
		return fmt.Errorf("reconstruction.texture_size must be one of %v, got %d", TextureSizes, c.Reconstruction.TextureSize)
	}
	switch c.Reconstruction.OutputFormat {
	case "obj", "ply", "glb":
	default:
		return fmt.Errorf("reconstruction.output_format must be obj, ply, or glb, got %q", c.Reconstruction.OutputFormat)
	}
	return nil
}

// IsBackend reports whether name is a supported background-removal backend.
func IsBackend(name string) bool {
	return name == BackendRembg || name == BackendBriaRMBG
}
