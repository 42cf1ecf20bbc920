package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"showtime-scraper/internal/config"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// settleDelay gives lazily rendered list items a moment to attach after the
// page has been scrolled to the bottom.
const settleDelay = 750 * time.Millisecond

// defaultNavTimeout bounds page loads when the configuration leaves it unset.
const defaultNavTimeout = 60 * time.Second

// ChromeRenderer starts one headless Chrome process per session.
type ChromeRenderer struct {
	opts       []chromedp.ExecAllocatorOption
	navTimeout time.Duration
	logger     *logrus.Logger
}

func NewChromeRenderer(cfg config.BrowserConfig, logger *logrus.Logger) *ChromeRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	navTimeout := cfg.NavTimeout
	if navTimeout <= 0 {
		navTimeout = defaultNavTimeout
	}
	return &ChromeRenderer{opts: opts, navTimeout: navTimeout, logger: logger}
}

// Acquire launches Chrome and opens the first tab. The process lives until
// Close is called on the returned session.
func (r *ChromeRenderer) Acquire(ctx context.Context) (Session, error) {
	// the browser outlives the acquiring request context; Close owns shutdown
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), r.opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %v", ErrSessionStart, err)
	}

	r.logger.Debug("Browser session started")
	return &chromeSession{
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		navTimeout:  r.navTimeout,
		logger:      r.logger,
	}, nil
}

type chromeSession struct {
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	navTimeout  time.Duration
	logger      *logrus.Logger
	closeOnce   sync.Once
}

func (s *chromeSession) Render(ctx context.Context, url, marker string, wait time.Duration) (string, error) {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	navCtx, navCancel := context.WithTimeout(runCtx, s.navTimeout)
	err := chromedp.Run(navCtx, chromedp.Navigate(url))
	navCancel()
	if err != nil {
		return "", navigationError(ctx, navCtx, url, s.navTimeout, err)
	}

	waitCtx, waitCancel := context.WithTimeout(runCtx, wait)
	defer waitCancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitReady(marker, chromedp.ByQuery)); err != nil {
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w: %s after %s", ErrMarkerTimeout, marker, wait)
		}
		return "", fmt.Errorf("wait for %s: %w", marker, err)
	}

	// the read is bounded like a page load; scrolling can trigger more fetches
	readCtx, readCancel := context.WithTimeout(runCtx, s.navTimeout)
	defer readCancel()
	var html string
	err = chromedp.Run(readCtx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("read rendered page: %w", err)
	}
	return html, nil
}

// navigationError wraps a failed page load in ErrNavigation and names the
// time limit when it expired while the caller was still waiting.
func navigationError(callerCtx, navCtx context.Context, url string, limit time.Duration, err error) error {
	if errors.Is(navCtx.Err(), context.DeadlineExceeded) && callerCtx.Err() == nil {
		return fmt.Errorf("%w: %s: page did not load within %s", ErrNavigation, url, limit)
	}
	return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
}

// Close terminates the tab and the Chrome process. Safe to call twice.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.ctx); err != nil {
			s.logger.WithError(err).Debug("Browser tab did not close cleanly")
		}
		s.tabCancel()
		s.allocCancel()
		s.logger.Debug("Browser session closed")
	})
	return nil
}
