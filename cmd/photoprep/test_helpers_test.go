package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"photoprep/internal/config"
	"photoprep/internal/testsupport"
)

const probeJSON = `{"streams":[{"index":0,"codec_type":"video","width":2,"height":1,"r_frame_rate":"10/1","nb_frames":"3"}],"format":{}}`

const threeFrames = `printf '\001\002\003\004\005\006\001\002\003\004\005\006\001\002\003\004\005\006'`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("rembg"))
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("PHOTOPREP_OUTPUT_DIR", "")
	t.Setenv("PHOTOPREP_SCRIPTS_DIR", "")

	toolDir := filepath.Join(base, "tools")
	cfg.Extraction.Source = config.SourceFFmpeg
	cfg.Tools.FFprobe = testsupport.WriteStubScript(t, toolDir, "ffprobe", "cat <<'JSON'\n"+probeJSON+"\nJSON\n")
	cfg.Tools.FFmpeg = testsupport.WriteStubScript(t, toolDir, "ffmpeg", threeFrames+"\n")
	if err := os.MkdirAll(cfg.Paths.ScriptsDir, 0o755); err != nil {
		t.Fatalf("mkdir scripts: %v", err)
	}

	configPath := filepath.Join(base, "photoprep.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func (e *cliTestEnv) script(t *testing.T, name, body string) string {
	t.Helper()
	return testsupport.WriteStubScript(t, e.cfg.Paths.ScriptsDir, name, body)
}

func (e *cliTestEnv) video(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, "videos", name)
	testsupport.WriteFile(t, path, 64)
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	flags = append(flags, "--log-level", "error")
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func listFiles(t *testing.T, dir, pattern string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return matches
}
