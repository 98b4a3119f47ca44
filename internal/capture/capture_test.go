package capture

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"halide/internal/layout"
)

func TestRewriteCDN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.html")
	html := `<link rel="stylesheet" href="static/extensions/halide/css/markdown.css?v=0.4.2">` +
		`<link rel="stylesheet" href="static/extensions/halide/css/widgets.css">` +
		`<img src="https://example.com/static/logo.png">`
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RewriteCDN(path, "0.4.2"); err != nil {
		t.Fatalf("RewriteCDN() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)

	if strings.Contains(got, "static/extensions/halide/") {
		t.Errorf("relative asset path survived rewrite: %q", got)
	}
	if !strings.Contains(got, `href="https://cdn.halide.dev/halide/0.4.2/dist/css/markdown.css"`) {
		t.Errorf("missing CDN URL for markdown.css: %q", got)
	}
	if !strings.Contains(got, `href="https://cdn.halide.dev/halide/0.4.2/dist/css/widgets.css"`) {
		t.Errorf("missing CDN URL for widgets.css: %q", got)
	}
	if strings.Contains(got, "?v=") {
		t.Errorf("cache-buster query survived rewrite: %q", got)
	}
	if !strings.Contains(got, "https://example.com/static/logo.png") {
		t.Errorf("absolute URL was modified: %q", got)
	}

	// Second pass must be a no-op.
	if err := RewriteCDN(path, "0.4.2"); err != nil {
		t.Fatal(err)
	}
	again, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != got {
		t.Error("RewriteCDN is not idempotent")
	}
}

func TestSaveUnknownEngineCleansUp(t *testing.T) {
	dir := t.TempDir()
	_, err := SaveComponent(layout.NewMarkdown("# Hi"), Options{
		SaveDir:  dir,
		Filename: "shot.png",
		Engine:   "bogus",
	})
	if err == nil {
		t.Fatal("expected error for unknown engine")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error should name the engine: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".html":
			t.Errorf("temp HTML left behind: %s", e.Name())
		case ".png":
			t.Errorf("PNG written on failure: %s", e.Name())
		case ".json":
			t.Errorf("manifest written on failure: %s", e.Name())
		}
	}
}

func TestStepLogRecordsEachStage(t *testing.T) {
	dir := t.TempDir()
	_, err := SaveComponent(layout.NewMarkdown("# Hi"), Options{
		SaveDir:  dir,
		Filename: "shot.png",
		Engine:   "bogus",
	})
	if err == nil {
		t.Fatal("expected error for unknown engine")
	}

	data, err := os.ReadFile(filepath.Join(dir, "shot.ndjson"))
	if err != nil {
		t.Fatalf("step log missing: %v", err)
	}
	levels := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry struct {
			Level string `json:"level"`
			Scope string `json:"scope"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("bad ndjson line %q: %v", line, err)
		}
		levels[entry.Scope] = entry.Level
	}

	for _, scope := range []string{"serialize", "rewrite", "cleanup"} {
		if levels[scope] != "info" {
			t.Errorf("scope %q level = %q, want info", scope, levels[scope])
		}
	}
	if levels["render"] != "warn" {
		t.Errorf("render level = %q, want warn on a failed render", levels["render"])
	}
}

func TestSaveHTMLLeavesSourceIntact(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "exported.html")
	original := `<html><link href="static/extensions/halide/css/widgets.css?v=0.4.2"></html>`
	if err := os.WriteFile(src, []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := SaveHTML(src, Options{SaveDir: filepath.Join(dir, "out"), Engine: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown engine")
	}

	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != original {
		t.Error("source document was modified; rewrite must happen on the temp copy")
	}
}

func TestSaveRequiresBuild(t *testing.T) {
	if _, err := Save(nil, Options{}); err == nil {
		t.Fatal("expected error for nil build")
	}
	if _, err := SaveHTML("", Options{}); err == nil {
		t.Fatal("expected error for empty html path")
	}
}

func TestDefaultFilename(t *testing.T) {
	now := time.Date(2026, 8, 23, 14, 5, 9, 0, time.UTC)
	if got, want := defaultFilename(now), "screenshot_20260823_140509.png"; got != want {
		t.Fatalf("defaultFilename() = %q, want %q", got, want)
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Setenv("SHOT_ENGINE", "")
	t.Setenv("SHOT_DIR", "")

	var opts Options
	applyDefaults(&opts)
	if opts.SaveDir != DefaultSaveDir {
		t.Errorf("SaveDir = %q", opts.SaveDir)
	}
	if opts.Engine != EnginePlaywright {
		t.Errorf("Engine = %q", opts.Engine)
	}
	if opts.Viewport != DefaultViewport {
		t.Errorf("Viewport = %+v", opts.Viewport)
	}
	if opts.SettleDelay != 2*time.Second {
		t.Errorf("SettleDelay = %v", opts.SettleDelay)
	}
	if !strings.HasPrefix(opts.Filename, "screenshot_") || !strings.HasSuffix(opts.Filename, ".png") {
		t.Errorf("Filename = %q", opts.Filename)
	}

	t.Setenv("SHOT_ENGINE", "chromedp")
	t.Setenv("SHOT_DIR", "elsewhere")
	opts = Options{}
	applyDefaults(&opts)
	if opts.Engine != EngineChromedp {
		t.Errorf("Engine from env = %q", opts.Engine)
	}
	if opts.SaveDir != "elsewhere" {
		t.Errorf("SaveDir from env = %q", opts.SaveDir)
	}
}

func TestManifestRoundTripAndFindShots(t *testing.T) {
	dir := t.TempDir()
	m := Manifest{
		ShotID:     "abc123",
		StartedAt:  time.Now().UTC().Truncate(time.Second),
		FinishedAt: time.Now().UTC().Truncate(time.Second),
		Engine:     EnginePlaywright,
		Viewport:   "1280x720",
		HTMLBytes:  2048,
		PNG:        "shot.png",
	}
	if err := writeManifest(filepath.Join(dir, "shot.json"), m); err != nil {
		t.Fatalf("writeManifest() error = %v", err)
	}
	// Stray JSON that is not a manifest must be skipped.
	if err := os.WriteFile(filepath.Join(dir, "junk.json"), []byte(`{"foo": 1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadManifest(filepath.Join(dir, "shot.json"))
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if loaded != m {
		t.Errorf("round trip mismatch: got %+v, want %+v", loaded, m)
	}

	shots, err := FindShots(dir)
	if err != nil {
		t.Fatalf("FindShots() error = %v", err)
	}
	if len(shots) != 1 || shots[0].ShotID != "abc123" {
		t.Errorf("FindShots() = %+v", shots)
	}
}
