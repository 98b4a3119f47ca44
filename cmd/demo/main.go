package main

import (
	"log"
	"os"

	"halide/internal/capture"
	"halide/internal/layout"
)

func main() {
	logger := log.New(os.Stdout, "[demo] ", log.LstdFlags|log.Lmicroseconds)

	app := layout.NewDemoApp()

	// Simulate the user adjusting widgets before hitting Run Report.
	app.Slider.Value = 7.5
	app.Text.Value = "quarterly report"

	// Callback-shaped usage: the capture joins a dedicated render
	// goroutine, so the goroutine servicing the callback stays free.
	onRun := func() {
		res, err := capture.Save(func() layout.Component { return app.Root }, capture.Options{})
		if err != nil {
			logger.Fatalf("screenshot failed: %v", err)
		}
		logger.Printf("Screenshot saved to %s", res.PNGPath)
		logger.Printf("Manifest: %s engine=%s html=%d bytes", res.ShotID, res.Manifest.Engine, res.Manifest.HTMLBytes)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		onRun()
	}()
	<-done
	logger.Println("Demo complete.")
}
