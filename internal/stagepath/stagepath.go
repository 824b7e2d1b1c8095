// Package stagepath derives the output folder for every pipeline stage.
//
// Layout:
//
//	<output_dir>/<video_stem>/images           extraction
//	<parent_of_images>/resize/images           resize
//	<parent_of_images>/rmbg/images             background removal
//	<parent_of_images>/thumbs                  previews
//
// Each function is a pure mapping of its inputs followed by create-if-missing.
// Existing folders are never cleared, so re-running a stage overwrites files
// that share a name and leaves the rest in place.
package stagepath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Stage identifies a pipeline stage that owns an output folder.
type Stage string

const (
	StageExtract Stage = "extract"
	StageResize  Stage = "resize"
	StageRMBG    Stage = "rmbg"
)

// ImagesDir is the leaf directory name every stage writes into.
const ImagesDir = "images"

// VideoStem returns the file name of videoPath without its extension.
func VideoStem(videoPath string) string {
	base := filepath.Base(videoPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// VideoFolder returns <baseDir>/<video stem>/images, creating it if needed.
func VideoFolder(baseDir, videoPath string) (string, error) {
	if strings.TrimSpace(baseDir) == "" {
		return "", errors.New("stage folder: base directory required")
	}
	stem := VideoStem(videoPath)
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "", fmt.Errorf("stage folder: cannot derive name from %q", videoPath)
	}
	return ensure(filepath.Join(baseDir, stem, ImagesDir))
}

// StageFolder returns the output folder for a post-processing stage applied
// to imagesFolder: <parent(imagesFolder)>/<stage>/images. It is created if
// needed.
func StageFolder(imagesFolder string, stage Stage) (string, error) {
	switch stage {
	case StageResize, StageRMBG:
	default:
		return "", fmt.Errorf("stage folder: unsupported stage %q", stage)
	}
	imagesFolder = strings.TrimRight(strings.TrimSpace(imagesFolder), string(filepath.Separator))
	if imagesFolder == "" {
		return "", errors.New("stage folder: images folder required")
	}
	parent := filepath.Dir(imagesFolder)
	return ensure(filepath.Join(parent, string(stage), ImagesDir))
}

// ThumbsFolder returns <parent(imagesFolder)>/thumbs, creating it if needed.
func ThumbsFolder(imagesFolder string) (string, error) {
	imagesFolder = strings.TrimRight(strings.TrimSpace(imagesFolder), string(filepath.Separator))
	if imagesFolder == "" {
		return "", errors.New("thumbs folder: images folder required")
	}
	return ensure(filepath.Join(filepath.Dir(imagesFolder), "thumbs"))
}

// ProjectSplit splits an images folder into the project root and folder name
// the reconstruction scripts expect.
func ProjectSplit(imagesFolder string) (project, folder string) {
	trimmed := strings.TrimRight(imagesFolder, string(filepath.Separator))
	return filepath.Dir(trimmed), filepath.Base(trimmed)
}

func ensure(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create stage folder %s: %w", dir, err)
	}
	return dir, nil
}
