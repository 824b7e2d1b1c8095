package stagerun_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"photoprep/internal/imagecodec"
	"photoprep/internal/imageset"
	"photoprep/internal/matting"
	"photoprep/internal/progress"
	"photoprep/internal/services"
	"photoprep/internal/stagerun"
	"photoprep/internal/testsupport"
)

func imagesDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "clip", "images")
}

func TestResizeScalesEachAxis(t *testing.T) {
	cases := []struct {
		percent int
		wantW   int
		wantH   int
	}{
		{50, 100, 50},
		{150, 300, 150},
		{100, 200, 100},
		{33, 66, 33},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d%%", tc.percent), func(t *testing.T) {
			dir := imagesDir(t)
			src := filepath.Join(dir, "shot.jpg")
			testsupport.WriteImage(t, src, 200, 100)

			report, err := stagerun.New().Resize(context.Background(), imageset.Set{src}, tc.percent)
			if err != nil {
				t.Fatalf("Resize returned error: %v", err)
			}
			want := filepath.Join(filepath.Dir(dir), "resize", "images", "shot.jpg")
			if len(report.Output) != 1 || report.Output[0] != want {
				t.Fatalf("unexpected output %v, want %s", report.Output, want)
			}
			if w, h := testsupport.ImageSize(t, want); w != tc.wantW || h != tc.wantH {
				t.Fatalf("got %dx%d, want %dx%d", w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestResizeRejectsNonPositiveScale(t *testing.T) {
	for _, percent := range []int{0, -10} {
		_, err := stagerun.New().Resize(context.Background(), imageset.Set{"a.png"}, percent)
		if !errors.Is(err, services.ErrInvalidParameter) {
			t.Fatalf("percent %d: expected invalid parameter, got %v", percent, err)
		}
	}
}

func TestResizePreservesOrderAndSkipsCorrupt(t *testing.T) {
	dir := imagesDir(t)
	var set imageset.Set
	for _, name := range []string{"c.png", "a.png", "broken.png", "b.bmp"} {
		path := filepath.Join(dir, name)
		if name == "broken.png" {
			testsupport.WriteFile(t, path, 64)
		} else {
			testsupport.WriteImage(t, path, 20, 10)
		}
		set = append(set, path)
	}

	report, err := stagerun.New().Resize(context.Background(), set, 50)
	if err != nil {
		t.Fatalf("Resize returned error: %v", err)
	}
	var names []string
	for _, p := range report.Output {
		names = append(names, filepath.Base(p))
	}
	if fmt.Sprint(names) != "[c.png a.png b.bmp]" {
		t.Fatalf("unexpected output order %v", names)
	}
	if len(report.Failures) != 1 || report.Failures[0].Path != set[2] {
		t.Fatalf("expected broken.png failure, got %+v", report.Failures)
	}
}

func TestResizeCollapsingDimensionIsItemFailure(t *testing.T) {
	dir := imagesDir(t)
	path := filepath.Join(dir, "thin.png")
	testsupport.WriteImage(t, path, 100, 1)

	report, err := stagerun.New().Resize(context.Background(), imageset.Set{path}, 50)
	if err != nil {
		t.Fatalf("Resize returned error: %v", err)
	}
	if len(report.Output) != 0 || len(report.Failures) != 1 {
		t.Fatalf("expected single failure, got %+v", report)
	}
}

func alphaSegmenter() matting.Segmenter {
	return matting.SegmenterFunc(func(_ context.Context, img image.Image) (image.Image, error) {
		b := img.Bounds()
		out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx()/2; x++ {
				out.Set(x, y, color.RGBA{R: 255, A: 255})
			}
		}
		return out, nil
	})
}

func TestRemoveBackgroundSkipsCorruptImage(t *testing.T) {
	dir := imagesDir(t)
	var set imageset.Set
	for i := 1; i <= 5; i++ {
		path := filepath.Join(dir, fmt.Sprintf("img%d.jpg", i))
		if i == 3 {
			testsupport.WriteFile(t, path, 128)
		} else {
			testsupport.WriteImage(t, path, 8, 8)
		}
		set = append(set, path)
	}

	var steps int
	runner := stagerun.New(stagerun.WithProgress(progress.Func(func(stage string, done, total int, _ string) {
		steps++
		if stage != "rmbg" || total != 5 || done != steps {
			t.Fatalf("unexpected progress %s %d/%d", stage, done, total)
		}
	})))
	report, err := runner.RemoveBackground(context.Background(), set, alphaSegmenter())
	if err != nil {
		t.Fatalf("RemoveBackground returned error: %v", err)
	}
	if len(report.Output) != 4 || len(report.Failures) != 1 {
		t.Fatalf("expected 4 outputs and 1 failure, got %d and %d", len(report.Output), len(report.Failures))
	}
	if report.Failures[0].Path != set[2] {
		t.Fatalf("expected img3.jpg to fail, got %s", report.Failures[0].Path)
	}
	if !errors.Is(report.Err(), services.ErrItemFailure) {
		t.Fatalf("expected item failure marker, got %v", report.Err())
	}
	if report.Processed() != 5 || steps != 5 {
		t.Fatalf("expected every image to be attempted, processed=%d steps=%d", report.Processed(), steps)
	}

	wantFolder := filepath.Join(filepath.Dir(dir), "rmbg", "images")
	for _, p := range report.Output {
		if filepath.Dir(p) != wantFolder {
			t.Fatalf("output %s outside %s", p, wantFolder)
		}
	}
	out, _, err := imagecodec.Load(filepath.Join(wantFolder, "rm_img1.png"))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if _, _, _, a := out.At(6, 4).RGBA(); a != 0 {
		t.Fatalf("expected transparent right half, alpha=%d", a)
	}
}

func TestRemoveBackgroundRecordsSegmenterErrors(t *testing.T) {
	dir := imagesDir(t)
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	testsupport.WriteImage(t, a, 4, 4)
	testsupport.WriteImage(t, b, 4, 4)

	calls := 0
	seg := matting.SegmenterFunc(func(_ context.Context, img image.Image) (image.Image, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("inference failed")
		}
		return img, nil
	})
	report, err := stagerun.New().RemoveBackground(context.Background(), imageset.Set{a, b}, seg)
	if err != nil {
		t.Fatalf("RemoveBackground returned error: %v", err)
	}
	if len(report.Output) != 1 || filepath.Base(report.Output[0]) != "rm_b.png" {
		t.Fatalf("unexpected output %v", report.Output)
	}
	if len(report.Failures) != 1 || report.Failures[0].Err.Error() != "inference failed" {
		t.Fatalf("unexpected failures %+v", report.Failures)
	}
}

func TestRemoveBackgroundStopsOnCancel(t *testing.T) {
	dir := imagesDir(t)
	var set imageset.Set
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, fmt.Sprintf("%d.png", i))
		testsupport.WriteImage(t, path, 4, 4)
		set = append(set, path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	seg := matting.SegmenterFunc(func(_ context.Context, img image.Image) (image.Image, error) {
		cancel()
		return img, nil
	})
	report, err := stagerun.New().RemoveBackground(ctx, set, seg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(report.Output) != 1 {
		t.Fatalf("expected partial output of 1 image, got %d", len(report.Output))
	}
}

func TestEmptySetProducesEmptyReport(t *testing.T) {
	report, err := stagerun.New().RemoveBackground(context.Background(), imageset.Set{}, alphaSegmenter())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Folder != "" || len(report.Output) != 0 || report.Err() != nil {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestRemovedName(t *testing.T) {
	cases := map[string]string{
		"/x/frame_0001.png": "rm_frame_0001.png",
		"/x/IMG.JPEG":       "rm_IMG.png",
		"/x/a.b.tiff":       "rm_a.b.png",
	}
	for in, want := range cases {
		if got := stagerun.RemovedName(in); got != want {
			t.Fatalf("RemovedName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestThumbnailFitsBox(t *testing.T) {
	thumb := stagerun.Thumbnail(image.NewRGBA(image.Rect(0, 0, 400, 200)), 100, 100)
	if b := thumb.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("unexpected thumbnail size %v", b)
	}
	small := image.NewRGBA(image.Rect(0, 0, 40, 20))
	if got := stagerun.Thumbnail(small, 100, 100); got.Bounds().Dx() != 40 {
		t.Fatalf("expected small image to be left alone, got %v", got.Bounds())
	}
}

func TestThumbnailsWriteBesideImages(t *testing.T) {
	dir := imagesDir(t)
	wide := filepath.Join(dir, "wide.png")
	tall := filepath.Join(dir, "tall.jpg")
	testsupport.WriteImage(t, wide, 400, 200)
	testsupport.WriteImage(t, tall, 50, 300)

	report, err := stagerun.New().Thumbnails(context.Background(), imageset.Set{tall, wide}, 100, 100)
	if err != nil {
		t.Fatalf("Thumbnails: %v", err)
	}
	want := filepath.Join(filepath.Dir(dir), "thumbs")
	if report.Folder != want {
		t.Fatalf("expected thumbs folder %s, got %s", want, report.Folder)
	}
	if len(report.Output) != 2 || report.Output[0] != filepath.Join(want, "tall.jpg") {
		t.Fatalf("unexpected output %v", report.Output)
	}
	if w, h := testsupport.ImageSize(t, report.Output[1]); w != 100 || h != 50 {
		t.Fatalf("unexpected wide thumbnail %dx%d", w, h)
	}
	if w, h := testsupport.ImageSize(t, report.Output[0]); w != 16 || h != 100 {
		t.Fatalf("unexpected tall thumbnail %dx%d", w, h)
	}
}

func TestThumbnailsRejectEmptyBox(t *testing.T) {
	_, err := stagerun.New().Thumbnails(context.Background(), imageset.Set{"x.png"}, 0, 100)
	if !errors.Is(err, services.ErrInvalidParameter) {
		t.Fatalf("expected invalid parameter, got %v", err)
	}
}
