package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExtraction()
	if err := c.normalizeBackground(); err != nil {
		return err
	}
	c.normalizeReconstruction()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("PHOTOPREP_OUTPUT_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.OutputDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("PHOTOPREP_SCRIPTS_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.ScriptsDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}

	var err error
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.ScriptsDir, err = expandPath(strings.TrimSpace(c.Paths.ScriptsDir)); err != nil {
		return fmt.Errorf("paths.scripts_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExtraction() {
	c.Extraction.Source = strings.ToLower(strings.TrimSpace(c.Extraction.Source))
	if c.Extraction.Source == "" {
		c.Extraction.Source = defaultSource
	}
}

func (c *Config) normalizeBackground() error {
	c.Background.Backend = strings.ToLower(strings.TrimSpace(c.Background.Backend))
	if c.Background.Backend == "" {
		c.Background.Backend = defaultBackend
	}
	c.Background.RembgBinary = strings.TrimSpace(c.Background.RembgBinary)
	if c.Background.RembgBinary == "" {
		c.Background.RembgBinary = defaultRembgBinary
	}
	c.Background.RembgModel = strings.TrimSpace(c.Background.RembgModel)
	if c.Background.BriaInputSize == 0 {
		c.Background.BriaInputSize = defaultBriaInputSize
	}
	model := strings.TrimSpace(c.Background.BriaModelPath)
	if model == "" {
		model = defaultBriaModelPath
	}
	var err error
	if c.Background.BriaModelPath, err = expandPath(model); err != nil {
		return fmt.Errorf("background.briarmbg_model: %w", err)
	}
	return nil
}

func (c *Config) normalizeReconstruction() {
	c.Reconstruction.Mode = strings.ToLower(strings.TrimSpace(c.Reconstruction.Mode))
	if c.Reconstruction.Mode == "" {
		c.Reconstruction.Mode = defaultMode
	}
	c.Reconstruction.OutputFormat = strings.ToLower(strings.TrimSpace(c.Reconstruction.OutputFormat))
	if c.Reconstruction.OutputFormat == "" {
		c.Reconstruction.OutputFormat = defaultOutputFormat
	}
	if c.Reconstruction.TextureSize == 0 {
		c.Reconstruction.TextureSize = defaultTextureSize
	}
	c.Reconstruction.PointCloudScript = defaultString(c.Reconstruction.PointCloudScript, defaultPointCloudScript)
	c.Reconstruction.ModelScript = defaultString(c.Reconstruction.ModelScript, defaultModelScript)
	c.Reconstruction.ViewerScript = defaultString(c.Reconstruction.ViewerScript, defaultViewerScript)
}

func (c *Config) normalizeTools() {
	c.Tools.FFmpeg = defaultString(c.Tools.FFmpeg, defaultFFmpeg)
	c.Tools.FFprobe = defaultString(c.Tools.FFprobe, defaultFFprobe)
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		format = defaultLogFormat
	case "json":
	default:
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
