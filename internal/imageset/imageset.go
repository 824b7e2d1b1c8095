// Package imageset enumerates the image files that make up the working set
// handed from one pipeline stage to the next.
package imageset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Extensions lists the file extensions recognised as images, lower-case with
// the leading dot.
var Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".webp"}

// Set is an ordered sequence of image file paths. Stages never mutate a Set
// in place; each produces a new one rooted at its own folder.
type Set []string

// Folder returns the deepest directory containing every image in the set,
// or "" for an empty set.
func (s Set) Folder() string {
	if len(s) == 0 {
		return ""
	}
	common := filepath.Dir(s[0])
	for _, path := range s[1:] {
		dir := filepath.Dir(path)
		for !within(dir, common) {
			parent := filepath.Dir(common)
			if parent == common {
				return common
			}
			common = parent
		}
	}
	return common
}

func within(dir, root string) bool {
	rel, err := filepath.Rel(root, dir)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Len reports the number of images in the set.
func (s Set) Len() int { return len(s) }

// IsImage reports whether path carries a recognised image extension,
// ignoring case.
func IsImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range Extensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// Scan walks folder recursively and returns every regular file, or symlink
// to one, with an image extension in directory traversal order. A folder that
// does not exist yields an empty set and no error.
func Scan(folder string) (Set, error) {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return Set{}, nil
	}
	info, err := os.Stat(folder)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("scan %s: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", folder)
	}

	set := Set{}
	err = filepath.WalkDir(folder, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !IsImage(entry.Name()) || !isRegularFile(path, entry) {
			return nil
		}
		set = append(set, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", folder, err)
	}
	return set, nil
}

// isRegularFile accepts regular files and symlinks that resolve to one.
func isRegularFile(path string, entry fs.DirEntry) bool {
	mode := entry.Type()
	if mode.IsRegular() {
		return true
	}
	if mode&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
