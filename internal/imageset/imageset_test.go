package imageset_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"photoprep/internal/imageset"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestScanFiltersByExtensionCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.png", "b.txt", "c.JPG"} {
		touch(t, filepath.Join(dir, name))
	}

	set, err := imageset.Scan(dir)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	got := slices.Clone(set)
	slices.Sort(got)
	want := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "c.JPG")}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected set: got %v want %v", got, want)
	}
}

func TestScanRecurses(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "images", "frame_0000.png"))
	touch(t, filepath.Join(dir, "resize", "images", "frame_0000.png"))
	touch(t, filepath.Join(dir, "deep", "a", "b", "pic.WebP"))
	touch(t, filepath.Join(dir, "deep", "notes.md"))

	set, err := imageset.Scan(dir)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if set.Len() != 3 {
		t.Fatalf("expected 3 images, got %d: %v", set.Len(), set)
	}
}

func TestScanFollowsFileSymlinks(t *testing.T) {
	dir := t.TempDir()
	store := t.TempDir()
	touch(t, filepath.Join(store, "shot.png"))
	if err := os.MkdirAll(filepath.Join(store, "folder.png"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	links := map[string]string{
		"linked.png":   filepath.Join(store, "shot.png"),
		"dangling.png": filepath.Join(store, "gone.png"),
		"dirlink.png":  filepath.Join(store, "folder.png"),
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(dir, name)); err != nil {
			t.Fatalf("symlink %s: %v", name, err)
		}
	}

	set, err := imageset.Scan(dir)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	want := []string{filepath.Join(dir, "linked.png")}
	if !slices.Equal([]string(set), want) {
		t.Fatalf("unexpected set: got %v want %v", set, want)
	}
}

func TestScanMissingFolderIsEmpty(t *testing.T) {
	set, err := imageset.Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("expected no error for missing folder, got %v", err)
	}
	if set == nil || set.Len() != 0 {
		t.Fatalf("expected empty non-nil set, got %#v", set)
	}
}

func TestScanRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	touch(t, path)
	if _, err := imageset.Scan(path); err == nil {
		t.Fatal("expected error when scanning a file")
	}
}

func TestIsImage(t *testing.T) {
	cases := map[string]bool{
		"x.png":     true,
		"x.JPEG":    true,
		"x.tiff":    true,
		"x.gif":     true,
		"x.bmp":     true,
		"x.webp":    true,
		"x.tif":     false,
		"x.mp4":     false,
		"noext":     false,
		"dir.png/x": false,
	}
	for path, want := range cases {
		if got := imageset.IsImage(path); got != want {
			t.Fatalf("IsImage(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestSetFolder(t *testing.T) {
	if got := (imageset.Set{}).Folder(); got != "" {
		t.Fatalf("expected empty folder, got %q", got)
	}
	set := imageset.Set{filepath.Join("out", "clip", "images", "frame_0000.png")}
	if got := set.Folder(); got != filepath.Join("out", "clip", "images") {
		t.Fatalf("unexpected folder %q", got)
	}
}

func TestSetFolderNestedImages(t *testing.T) {
	root := filepath.Join("out", "clip", "images")
	set := imageset.Set{
		filepath.Join(root, "a", "x.png"),
		filepath.Join(root, "b.png"),
		filepath.Join(root, "a", "deeper", "y.png"),
	}
	if got := set.Folder(); got != root {
		t.Fatalf("expected common folder %q, got %q", root, got)
	}
}
