package capture

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"halide/internal/layout"
)

// Engine names accepted by Options.Engine.
const (
	EnginePlaywright = "playwright"
	EngineChromedp   = "chromedp"
)

// DefaultSaveDir is where screenshots land unless overridden.
const DefaultSaveDir = "screenshots"

const (
	defaultSettle = 2 * time.Second
	renderTimeout = 40 * time.Second
)

// Size is a viewport in pixels.
type Size struct {
	Width  int
	Height int
}

// DefaultViewport matches the dimensions exported documents are laid
// out for.
var DefaultViewport = Size{Width: 1280, Height: 720}

// Options configure a capture.
type Options struct {
	SaveDir      string        // defaults to SHOT_DIR, then "screenshots"
	Filename     string        // defaults to screenshot_YYYYMMDD_HHMMSS.png
	Engine       string        // defaults to SHOT_ENGINE, then "playwright"
	Viewport     Size          // defaults to 1280x720
	SettleDelay  time.Duration // extra wait after network idle; defaults to 2s
	ViewportOnly bool          // capture the viewport instead of the full page
}

// Result contains the saved artifact paths and manifest.
type Result struct {
	ShotID   string
	PNGPath  string
	LogPath  string
	Manifest Manifest
}

// Manifest is persisted next to each screenshot.
type Manifest struct {
	ShotID     string    `json:"shot_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Engine     string    `json:"engine"`
	Viewport   string    `json:"viewport"`
	HTMLBytes  int64     `json:"html_bytes"`
	PNG        string    `json:"png"`
	LogPath    string    `json:"log_path"`
}

// Save captures the layout returned by build as a PNG and returns the
// result. Widget values are read when build runs, so calling this from
// inside a callback captures the application state the user sees.
//
// Safe to call from any callback goroutine: the browser driver blocks
// for the whole render, so it runs on its own goroutine and the caller
// only blocks on the join.
func Save(build func() layout.Component, opts Options) (Result, error) {
	if build == nil {
		return Result{}, errors.New("build is required")
	}
	return run(func(tmpPath string) error {
		return layout.Save(build(), tmpPath)
	}, opts)
}

// SaveComponent is Save for a component already in hand.
func SaveComponent(c layout.Component, opts Options) (Result, error) {
	if c == nil {
		return Result{}, errors.New("component is required")
	}
	return Save(func() layout.Component { return c }, opts)
}

// SaveHTML captures an already-exported document. The source file is
// left untouched; the rewrite happens on a temporary copy.
func SaveHTML(htmlPath string, opts Options) (Result, error) {
	if htmlPath == "" {
		return Result{}, errors.New("htmlPath is required")
	}
	return run(func(tmpPath string) error {
		data, err := os.ReadFile(htmlPath)
		if err != nil {
			return err
		}
		return os.WriteFile(tmpPath, data, 0o644)
	}, opts)
}

// run is the four-step operation: export to a temp file, rewrite asset
// paths, render on a dedicated goroutine, and clean up the temp file
// whether or not the earlier steps succeeded.
func run(export func(tmpPath string) error, opts Options) (Result, error) {
	applyDefaults(&opts)
	if err := os.MkdirAll(opts.SaveDir, 0o755); err != nil {
		return Result{}, err
	}

	shotID := fmt.Sprintf("%x", time.Now().UnixNano())
	outputPath, err := filepath.Abs(filepath.Join(opts.SaveDir, opts.Filename))
	if err != nil {
		return Result{}, err
	}
	base := strings.TrimSuffix(opts.Filename, filepath.Ext(opts.Filename))

	logPath := filepath.Join(opts.SaveDir, base+".ndjson")
	logFile, err := os.Create(logPath)
	if err != nil {
		return Result{}, err
	}
	defer logFile.Close()
	logger := newNDJSONLogger(logFile)

	// Temp file lives in SaveDir so export and output share a filesystem.
	tmp, err := os.CreateTemp(opts.SaveDir, "halide-*.html")
	if err != nil {
		return Result{}, err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			logger.warn("cleanup", "remove temp html failed", map[string]any{"error": err.Error()})
			return
		}
		logger.info("cleanup", "temp html removed", map[string]any{"path": tmpPath})
	}()

	start := time.Now()
	if err := export(tmpPath); err != nil {
		logger.warn("serialize", "layout export failed", map[string]any{"error": err.Error()})
		return Result{}, fmt.Errorf("export layout: %w", err)
	}
	logger.info("serialize", "standalone html ready", map[string]any{"bytes": fileSize(tmpPath)})

	if err := RewriteCDN(tmpPath, layout.Version); err != nil {
		logger.warn("rewrite", "asset path rewrite failed", map[string]any{"error": err.Error()})
		return Result{}, fmt.Errorf("rewrite asset paths: %w", err)
	}
	htmlBytes := fileSize(tmpPath)
	logger.info("rewrite", "asset refs point at cdn", map[string]any{"version": layout.Version, "bytes": htmlBytes})

	errc := make(chan error, 1)
	go func() {
		errc <- renderHTML(opts, tmpPath, outputPath, logger)
	}()
	if err := <-errc; err != nil {
		logger.warn("render", "render failed", map[string]any{"engine": opts.Engine, "error": err.Error()})
		return Result{}, fmt.Errorf("render: %w", err)
	}
	logger.info("render", "render complete", map[string]any{"engine": opts.Engine})

	manifest := Manifest{
		ShotID:     shotID,
		StartedAt:  start,
		FinishedAt: time.Now(),
		Engine:     opts.Engine,
		Viewport:   fmt.Sprintf("%dx%d", opts.Viewport.Width, opts.Viewport.Height),
		HTMLBytes:  htmlBytes,
		PNG:        filepath.Base(outputPath),
		LogPath:    logPath,
	}
	manifestPath := filepath.Join(opts.SaveDir, base+".json")
	if err := writeManifest(manifestPath, manifest); err != nil {
		logger.warn("capture", "write manifest failed", map[string]any{"error": err.Error()})
	}
	logger.info("capture", "screenshot saved", map[string]any{"path": outputPath})

	return Result{
		ShotID:   shotID,
		PNGPath:  outputPath,
		LogPath:  logPath,
		Manifest: manifest,
	}, nil
}

func applyDefaults(opts *Options) {
	if opts.SaveDir == "" {
		if env := DiscoverSaveDir(); env != "" {
			opts.SaveDir = env
		} else {
			opts.SaveDir = DefaultSaveDir
		}
	}
	if opts.Filename == "" {
		opts.Filename = defaultFilename(time.Now())
	}
	if opts.Engine == "" {
		if env := DiscoverEngine(); env != "" {
			opts.Engine = env
		} else {
			opts.Engine = EnginePlaywright
		}
	}
	if opts.Viewport.Width <= 0 || opts.Viewport.Height <= 0 {
		opts.Viewport = DefaultViewport
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettle
	}
}

func defaultFilename(now time.Time) string {
	return "screenshot_" + now.Format("20060102_150405") + ".png"
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// assetRefPattern matches relative framework asset references like
// static/extensions/halide/css/markdown.css?v=0.4.2, capturing the
// path and dropping any cache-buster query.
var assetRefPattern = regexp.MustCompile(`static/extensions/halide/([^"'?\s]+)(\?[^"']*)?`)

// RewriteCDN replaces framework asset references in the document at
// htmlPath with versioned CDN URLs so it renders correctly when
// opened from file:// instead of the framework's server. Every
// occurrence of the static/extensions/halide/ prefix is rewritten,
// wherever it appears; rewritten URLs no longer contain the prefix,
// so running it twice is a no-op.
func RewriteCDN(htmlPath, version string) error {
	html, err := os.ReadFile(htmlPath)
	if err != nil {
		return err
	}
	cdnBase := "https://cdn.halide.dev/halide/" + version + "/dist"
	fixed := assetRefPattern.ReplaceAll(html, []byte(cdnBase+"/${1}"))
	return os.WriteFile(htmlPath, fixed, 0o644)
}

// DiscoverEngine returns the engine from the environment if set.
func DiscoverEngine() string {
	return strings.TrimSpace(os.Getenv("SHOT_ENGINE"))
}

// DiscoverSaveDir returns the screenshot directory from the
// environment if set.
func DiscoverSaveDir() string {
	return strings.TrimSpace(os.Getenv("SHOT_DIR"))
}

// --- manifests ---

func writeManifest(path string, manifest Manifest) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}

// LoadManifest reads a manifest from disk.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// FindShots returns the manifests stored under dir, oldest first by
// filename.
func FindShots(dir string) ([]Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var shots []Manifest
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		m, err := LoadManifest(filepath.Join(dir, e.Name()))
		if err != nil || m.ShotID == "" {
			continue
		}
		shots = append(shots, m)
	}
	return shots, nil
}

// --- step log ---

type ndjsonLogger struct {
	w *bufio.Writer
}

type logLine struct {
	TS    time.Time      `json:"ts"`
	Level string         `json:"level"`
	Scope string         `json:"scope"`
	Msg   string         `json:"msg"`
	Meta  map[string]any `json:"meta,omitempty"`
}

func newNDJSONLogger(file *os.File) *ndjsonLogger {
	return &ndjsonLogger{w: bufio.NewWriter(file)}
}

func (l *ndjsonLogger) write(level, scope, msg string, meta map[string]any) {
	line := logLine{TS: time.Now(), Level: level, Scope: scope, Msg: msg, Meta: meta}
	b, _ := json.Marshal(line)
	l.w.Write(b)
	l.w.WriteByte('\n')
	l.w.Flush()
}

func (l *ndjsonLogger) info(scope, msg string, meta map[string]any) {
	l.write("info", scope, msg, meta)
}
func (l *ndjsonLogger) warn(scope, msg string, meta map[string]any) {
	l.write("warn", scope, msg, meta)
}
