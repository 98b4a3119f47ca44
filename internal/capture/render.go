package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/playwright-community/playwright-go"
)

// renderHTML opens the document at htmlPath from disk in a headless
// browser and writes a PNG to outputPath. It blocks for the whole
// render; run() keeps it off the caller's goroutine.
func renderHTML(opts Options, htmlPath, outputPath string, logger *ndjsonLogger) error {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return err
	}
	target := "file://" + abs

	switch opts.Engine {
	case EnginePlaywright:
		return renderPlaywright(target, outputPath, opts, logger)
	case EngineChromedp:
		return renderChromedp(target, outputPath, opts, logger)
	default:
		return fmt.Errorf("unknown engine %q", opts.Engine)
	}
}

func renderPlaywright(target, outputPath string, opts Options, logger *ndjsonLogger) error {
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		return err
	}

	pw, err := playwright.Run()
	if err != nil {
		return err
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args:     []string{"--disable-dev-shm-usage"},
	})
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer browser.Close()

	pg, err := browser.NewPage(playwright.BrowserNewPageOptions{
		Viewport: &playwright.Size{Width: opts.Viewport.Width, Height: opts.Viewport.Height},
	})
	if err != nil {
		return err
	}

	logger.info("browser", "navigating", map[string]any{"url": target})
	if _, err := pg.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(renderTimeout.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}

	pg.WaitForTimeout(float64(opts.SettleDelay.Milliseconds()))

	if _, err := pg.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(outputPath),
		FullPage: playwright.Bool(!opts.ViewportOnly),
	}); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	logger.info("browser", "screenshot captured", map[string]any{"path": outputPath})
	return nil
}

func renderChromedp(target, outputPath string, opts Options, logger *ndjsonLogger) error {
	execOpts := chromedp.DefaultExecAllocatorOptions[:]
	execOpts = append(execOpts, chromedp.Flag("disable-dev-shm-usage", true))
	if os.Getenv("GITHUB_ACTIONS") == "true" {
		execOpts = append(execOpts, chromedp.NoSandbox)
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), execOpts...)
	defer cancelAlloc()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, renderTimeout)
	defer cancelTimeout()

	logger.info("browser", "navigating", map[string]any{"url": target})
	if err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(opts.Viewport.Width), int64(opts.Viewport.Height)),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(opts.SettleDelay),
	); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithCaptureBeyondViewport(!opts.ViewportOnly).
			Do(ctx)
		return err
	})); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}

	if err := os.WriteFile(outputPath, buf, 0o644); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	logger.info("browser", "screenshot captured", map[string]any{"path": outputPath})
	return nil
}
