package stagepath_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"photoprep/internal/stagepath"
)

func TestVideoFolderLayoutAndIdempotence(t *testing.T) {
	base := t.TempDir()
	video := filepath.Join("/videos", "statue.scan.mp4")

	first, err := stagepath.VideoFolder(base, video)
	if err != nil {
		t.Fatalf("VideoFolder returned error: %v", err)
	}
	want := filepath.Join(base, "statue.scan", "images")
	if first != want {
		t.Fatalf("unexpected folder: got %q want %q", first, want)
	}

	marker := filepath.Join(first, "frame_0000.png")
	if err := os.WriteFile(marker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	second, err := stagepath.VideoFolder(base, video)
	if err != nil {
		t.Fatalf("second VideoFolder returned error: %v", err)
	}
	if second != first {
		t.Fatalf("expected identical path, got %q and %q", first, second)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("existing content must be preserved: %v", err)
	}
}

func TestStageFolderUsesParentOfImages(t *testing.T) {
	base := t.TempDir()
	images := filepath.Join(base, "clip", "images")

	resize, err := stagepath.StageFolder(images, stagepath.StageResize)
	if err != nil {
		t.Fatalf("StageFolder resize: %v", err)
	}
	if want := filepath.Join(base, "clip", "resize", "images"); resize != want {
		t.Fatalf("unexpected resize folder %q want %q", resize, want)
	}

	rmbg, err := stagepath.StageFolder(resize+string(filepath.Separator), stagepath.StageRMBG)
	if err != nil {
		t.Fatalf("StageFolder rmbg: %v", err)
	}
	if want := filepath.Join(base, "clip", "resize", "rmbg", "images"); rmbg != want {
		t.Fatalf("unexpected rmbg folder %q want %q", rmbg, want)
	}

	again, err := stagepath.StageFolder(resize, stagepath.StageRMBG)
	if err != nil || again != rmbg {
		t.Fatalf("expected idempotent derivation, got %q, %v", again, err)
	}
	for _, dir := range []string{resize, rmbg} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected %q to exist as directory: %v", dir, err)
		}
	}
}

func TestStageFolderRejectsUnknownStage(t *testing.T) {
	if _, err := stagepath.StageFolder(t.TempDir(), stagepath.StageExtract); err == nil {
		t.Fatal("expected error for extract stage")
	}
	if _, err := stagepath.StageFolder("", stagepath.StageResize); err == nil {
		t.Fatal("expected error for empty folder")
	}
}

func TestVideoFolderPropagatesFilesystemErrors(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission checks not meaningful here")
	}
	base := t.TempDir()
	if err := os.Chmod(base, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(base, 0o755) })

	if _, err := stagepath.VideoFolder(base, "clip.mp4"); err == nil {
		t.Fatal("expected permission error to propagate")
	}
}

func TestProjectSplit(t *testing.T) {
	project, folder := stagepath.ProjectSplit("/data/clip/rmbg/images/")
	if project != "/data/clip/rmbg" || folder != "images" {
		t.Fatalf("unexpected split %q %q", project, folder)
	}
}

func TestVideoStem(t *testing.T) {
	if got := stagepath.VideoStem("/a/b/walk.around.MOV"); got != "walk.around" {
		t.Fatalf("unexpected stem %q", got)
	}
}

func TestThumbsFolderSitsBesideImages(t *testing.T) {
	images := filepath.Join(t.TempDir(), "clip", "rmbg", "images")
	got, err := stagepath.ThumbsFolder(images + string(filepath.Separator))
	if err != nil {
		t.Fatalf("ThumbsFolder: %v", err)
	}
	if want := filepath.Join(filepath.Dir(images), "thumbs"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if info, err := os.Stat(got); err != nil || !info.IsDir() {
		t.Fatalf("expected thumbs folder to exist: %v", err)
	}
}
