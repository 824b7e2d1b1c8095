// Package deps reports whether the external programs and scripts photoprep
// shells out to are present.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"photoprep/internal/config"
)

// Requirement defines an external dependency photoprep relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// Script marks a file path rather than a PATH lookup.
	Script bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the dependencies implied by cfg.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "Decodes video when extraction.source is ffmpeg",
			Optional:    cfg.Extraction.Source != config.SourceFFmpeg,
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Tools.FFprobe,
			Description: "Reads frame rate and frame count for the ffmpeg decoder",
			Optional:    cfg.Extraction.Source != config.SourceFFmpeg,
		},
		{
			Name:        "rembg",
			Command:     cfg.Background.RembgBinary,
			Description: "General-purpose background removal",
			Optional:    cfg.Background.Backend != config.BackendRembg,
		},
		{
			Name:        "BRIA RMBG model",
			Command:     cfg.Background.BriaModelPath,
			Description: "ONNX weights for the briarmbg backend",
			Optional:    cfg.Background.Backend != config.BackendBriaRMBG,
			Script:      true,
		},
	}
	scripts := []struct {
		name, file, desc string
		optional         bool
	}{
		{"Point cloud script", cfg.Reconstruction.PointCloudScript, "COLMAP sparse/dense reconstruction", cfg.Reconstruction.Mode != config.ModePointCloud},
		{"Model script", cfg.Reconstruction.ModelScript, "COLMAP + OpenMVS textured model", cfg.Reconstruction.Mode != config.ModeModel},
		{"Viewer script", cfg.Reconstruction.ViewerScript, "Launches the model viewer", true},
	}
	for _, s := range scripts {
		reqs = append(reqs, Requirement{
			Name:        s.name,
			Command:     cfg.ScriptPath(s.file),
			Description: s.desc,
			Optional:    s.optional,
			Script:      true,
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if req.Script {
			info, err := os.Stat(cmd)
			switch {
			case err != nil:
				status.Detail = fmt.Sprintf("file %q not found", cmd)
			case info.IsDir():
				status.Detail = fmt.Sprintf("%q is a directory", cmd)
			default:
				status.Available = true
			}
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
