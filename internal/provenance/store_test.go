package provenance

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	run := Run{ID: "run-1", Source: "/videos/bust.mp4", FrameRate: 6, ResizePercent: 50, Backend: "rembg"}
	if err := store.BeginRun(ctx, run); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	code := 0
	stages := []StageOutput{
		{RunID: "run-1", Stage: "extract", OutputFolder: "/out/bust/images", Succeeded: 60},
		{RunID: "run-1", Stage: "resize", InputFolder: "/out/bust/images", OutputFolder: "/out/bust/resize/images", Succeeded: 59, Failed: 1, Detail: "frame_0003.png: decode"},
		{RunID: "run-1", Stage: "reconstruct", InputFolder: "/out/bust/resize/images", ExitCode: &code},
	}
	for _, st := range stages {
		if err := store.RecordStage(ctx, st); err != nil {
			t.Fatalf("RecordStage(%s): %v", st.Stage, err)
		}
	}
	if err := store.FinishRun(ctx, "run-1", nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != StatusCompleted || got.Backend != "rembg" || got.ResizePercent != 50 || got.FinishedAt.IsZero() {
		t.Fatalf("unexpected run %+v", got)
	}

	recorded, err := store.Stages(ctx, "run-1")
	if err != nil {
		t.Fatalf("Stages: %v", err)
	}
	if len(recorded) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(recorded))
	}
	if recorded[1].Failed != 1 || recorded[1].Detail == "" {
		t.Fatalf("unexpected resize record %+v", recorded[1])
	}
	if recorded[0].ExitCode != nil || recorded[2].ExitCode == nil || *recorded[2].ExitCode != 0 {
		t.Fatalf("unexpected exit codes %+v / %+v", recorded[0], recorded[2])
	}

	latest, err := store.LatestOutput(ctx, "resize")
	if err != nil || latest != "/out/bust/resize/images" {
		t.Fatalf("LatestOutput = %q, %v", latest, err)
	}
	none, err := store.LatestOutput(ctx, "rmbg")
	if err != nil || none != "" {
		t.Fatalf("expected no rmbg output, got %q, %v", none, err)
	}
}

func TestFinishRunRecordsFailure(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	if err := store.BeginRun(ctx, Run{ID: "run-2", Source: "/images"}); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.FinishRun(ctx, "run-2", errors.New("colmap exited with code 1")); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	run, err := store.GetRun(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != StatusFailed || run.ErrorMessage != "colmap exited with code 1" {
		t.Fatalf("unexpected run %+v", run)
	}

	if err := store.FinishRun(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.BeginRun(ctx, Run{ID: id, Source: id, StartedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("BeginRun(%s): %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected order %+v", runs)
	}
	if !runs[0].StartedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected start time %v", runs[0].StartedAt)
	}
	all, err := store.ListRuns(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all runs, got %d, %v", len(all), err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 2; i++ {
		store, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
		var applied int
		if err := store.db.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&applied); err != nil {
			t.Fatalf("count migrations: %v", err)
		}
		if applied != 2 {
			t.Fatalf("expected 2 applied migrations, got %d", applied)
		}
		_ = store.Close()
	}
}

func TestStageOutputRequiresRun(t *testing.T) {
	store := openTestStore(t)
	err := store.RecordStage(context.Background(), StageOutput{RunID: "ghost", Stage: "extract"})
	if err == nil {
		t.Fatal("expected foreign key violation for unknown run")
	}
}
