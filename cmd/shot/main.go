package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"halide/internal/capture"
	"halide/internal/layout"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	switch os.Args[1] {
	case "render":
		renderCmd(os.Args[2:])
	case "serve":
		serveCmd(os.Args[2:])
	case "list":
		listCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Println("shot usage:")
	fmt.Println("  shot render --html <path> [--out <name.png>] [--engine playwright|chromedp] [--viewport-only]")
	fmt.Println("  shot serve  [--port 8787] [--dir screenshots]")
	fmt.Println("  shot list   [--dir screenshots]")
}

func renderCmd(args []string) {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	html := fs.String("html", "", "Exported HTML document to capture")
	out := fs.String("out", "", "Output PNG filename")
	dir := fs.String("dir", capture.DiscoverSaveDir(), "Screenshot directory")
	engine := fs.String("engine", capture.DiscoverEngine(), "Render engine")
	viewportOnly := fs.Bool("viewport-only", false, "Capture the viewport instead of the full page")
	fs.Parse(args)

	if *html == "" {
		log.Fatal("--html is required")
	}

	res, err := capture.SaveHTML(*html, capture.Options{
		SaveDir:      *dir,
		Filename:     strings.TrimSpace(*out),
		Engine:       strings.TrimSpace(*engine),
		ViewportOnly: *viewportOnly,
	})
	if err != nil {
		log.Fatalf("render failed: %v", err)
	}
	b, _ := json.MarshalIndent(res.Manifest, "", "  ")
	fmt.Println(string(b))
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dir := fs.String("dir", defaultDir(), "Screenshot directory")
	fs.Parse(args)

	shots, err := capture.FindShots(*dir)
	if err != nil {
		log.Fatal(err)
	}
	for _, m := range shots {
		fmt.Printf("%s\t%s\t%s\n", m.ShotID, m.Engine, m.PNG)
	}
}

func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 8787, "Port to listen on")
	dir := fs.String("dir", defaultDir(), "Screenshot directory")
	fs.Parse(args)

	s := newServer(*dir)
	addr := fmt.Sprintf(":%d", *port)
	log.Printf("shot serve listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, s.routes()))
}

func defaultDir() string {
	if env := capture.DiscoverSaveDir(); env != "" {
		return env
	}
	return capture.DefaultSaveDir
}

// --- server ---

type server struct {
	saveDir string
}

func newServer(saveDir string) *server {
	return &server{saveDir: saveDir}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/v1/shots", s.handleShots)
	mux.HandleFunc("/v1/shots/", s.handleShotByID)
	// static files for captured artifacts
	mux.Handle("/shots/", http.StripPrefix("/shots/", http.FileServer(http.Dir(s.saveDir))))
	return withCORS(mux)
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}

type shotRequest struct {
	HTML         string `json:"html"`
	Engine       string `json:"engine"`
	Filename     string `json:"filename"`
	ViewportOnly bool   `json:"viewport_only"`
}

func (s *server) handleShots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST only"})
		return
	}
	var req shotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	opts := capture.Options{
		SaveDir:      s.saveDir,
		Filename:     strings.TrimSpace(req.Filename),
		Engine:       strings.TrimSpace(req.Engine),
		ViewportOnly: req.ViewportOnly,
	}
	var res capture.Result
	var err error
	if req.HTML == "" {
		// No document posted: render the demo layout.
		res, err = capture.Save(func() layout.Component { return layout.NewDemoApp().Root }, opts)
	} else {
		res, err = capture.SaveHTML(req.HTML, opts)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	manifest := res.Manifest
	manifest.PNG = "/shots/" + manifest.PNG
	writeJSON(w, http.StatusOK, manifest)
}

func (s *server) handleShotByID(w http.ResponseWriter, r *http.Request) {
	shotID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/shots/"), "/")
	if shotID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}
	shots, err := capture.FindShots(s.saveDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	for _, m := range shots {
		if m.ShotID == shotID {
			m.PNG = "/shots/" + m.PNG
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
