package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
	StateDir   string `toml:"state_dir"`
	ScriptsDir string `toml:"scripts_dir"`
}

// Extraction controls frame sampling from video.
type Extraction struct {
	// FrameRate is the number of frames requested per second of source video.
	FrameRate int `toml:"frame_rate"`
	// Source selects the decoder: "opencv" or "ffmpeg".
	Source string `toml:"source"`
}

// Resize controls the resize stage.
type Resize struct {
	ScalePercent int `toml:"scale_percent"`
}

// Background controls the background-removal stage.
type Background struct {
	Backend       string `toml:"backend"`
	RembgBinary   string `toml:"rembg_binary"`
	RembgModel    string `toml:"rembg_model"`
	BriaModelPath string `toml:"briarmbg_model"`
	BriaInputSize int    `toml:"briarmbg_size"`
	UseCUDA       bool   `toml:"use_cuda"`
}

// Reconstruction controls the external COLMAP / OpenMVS toolchain.
type Reconstruction struct {
	Mode             string `toml:"mode"`
	TextureSize      int    `toml:"texture_size"`
	UseGPU           bool   `toml:"use_gpu"`
	OutputFormat     string `toml:"output_format"`
	PointCloudScript string `toml:"point_cloud_script"`
	ModelScript      string `toml:"model_script"`
	ViewerScript     string `toml:"viewer_script"`
}

// Tools names the external binaries used for media inspection and decode.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for photoprep.
//
// Configuration sections by subsystem:
//   - Paths: output, log, state, and toolchain script directories
//   - Extraction: target frame rate and decoder selection
//   - Resize: default scale percentage
//   - Background: segmentation backend and model locations
//   - Reconstruction: toolchain mode, texture size, GPU flag, output format
//   - Tools: ffmpeg / ffprobe binaries
//   - Logging: log format and level
type Config struct {
	Paths          Paths          `toml:"paths"`
	Extraction     Extraction     `toml:"extraction"`
	Resize         Resize         `toml:"resize"`
	Background     Background     `toml:"background"`
	Reconstruction Reconstruction `toml:"reconstruction"`
	Tools          Tools          `toml:"tools"`
	Logging        Logging        `toml:"logging"`
}

// Pipeline is the parameter set threaded through a single run.
type Pipeline struct {
	FrameRate     int
	ResizePercent int
	Backend       string
}

// Pipeline returns the run parameters derived from the configuration.
func (c *Config) Pipeline() Pipeline {
	return Pipeline{
		FrameRate:     c.Extraction.FrameRate,
		ResizePercent: c.Resize.ScalePercent,
		Backend:       c.Background.Backend,
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/photoprep/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("photoprep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and state directories. The output
// directory is created lazily by the stages that write into it.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ScriptPath resolves a toolchain script name against the scripts directory.
// Absolute names are returned unchanged.
func (c *Config) ScriptPath(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Paths.ScriptsDir, name)
}

// ReconstructionScript returns the script path for the configured mode.
func (c *Config) ReconstructionScript() string {
	if c.Reconstruction.Mode == ModeModel {
		return c.ScriptPath(c.Reconstruction.ModelScript)
	}
	return c.ScriptPath(c.Reconstruction.PointCloudScript)
}

// HistoryPath returns the location of the provenance database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
