package export

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Rasterizer turns an SVG document into PNG bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, svg string, width, height int) ([]byte, error)
}

// ChromeRasterizer renders through a headless Chrome: the SVG is loaded as a
// data URI and the root svg element is screenshotted.
type ChromeRasterizer struct {
	// Timeout bounds a single render. Zero means 30 seconds.
	Timeout time.Duration
}

func (r ChromeRasterizer) Rasterize(ctx context.Context, svg string, width, height int) ([]byte, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(width+20, height+20),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	url := "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))

	var png []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("svg", chromedp.ByQuery),
		chromedp.Screenshot("svg", &png, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("export: chrome render: %w", err)
	}
	return png, nil
}
