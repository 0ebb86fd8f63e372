// Package measure is the layout host behind the canvas overflow engine. It
// drives a headless Chromium instance to a rendered session page and reads
// each page body's live scroll height; the engine itself only ever consumes
// these already-measured numbers.
package measure

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Default measurement parameters. These should match the layout used by the
// session renderer.
const (
	DefaultWidth      = 794
	DefaultHeight     = 1123
	DefaultTimeoutSec = 30
)

// Options defines parameters for a Chromium-based height measurement.
type Options struct {
	// URL of the rendered session to measure, e.g.
	// "http://127.0.0.1:8080/courses/<id>/sessions/3".
	URL string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire measurement operation. If zero, a sane
	// default (DefaultTimeoutSec) is used.
	Timeout time.Duration
}

// pageHeight is the JSON shape produced by the in-page measurement script.
type pageHeight struct {
	ID       string `json:"id"`
	HeightPx int    `json:"height"`
}

// measureScript collects the scroll height of every page body region. Each
// rendered page exposes data-page-id on its body element; scrollHeight is
// the content height including any overflow past the visible box.
const measureScript = `[...document.querySelectorAll('[data-page-id]')]
	.map((el) => ({ id: el.dataset.pageId, height: el.scrollHeight }))`

// SessionHeights launches (or attaches to) a headless Chromium instance via
// chromedp, navigates to opts.URL, waits for the renderer to signal that
// content has settled, and returns the measured content height per page id.
//
// Rendering-complete condition:
//   - The session root element exposes a data-ready attribute:
//     <div data-ready="true" ...>
//   - This function waits until `[data-ready="true"]` is visible before
//     evaluating the measurement script.
func SessionHeights(parentCtx context.Context, opts Options) (map[string]int, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("measure: URL is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var heights []pageHeight
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// Small extra delay to allow final paints before reading heights.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Evaluate(measureScript, &heights),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("measure: chromedp run failed: %w", err)
	}

	out := make(map[string]int, len(heights))
	for _, h := range heights {
		if h.ID == "" {
			continue
		}
		out[h.ID] = h.HeightPx
	}
	return out, nil
}
