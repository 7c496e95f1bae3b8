// Package scraper provides the page sources a collection run reads from:
// a pooled headless browser and a static HTTP fetcher.
package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/sortcheck/config"
	"github.com/use-agent/sortcheck/models"
)

// Scraper manages the global browser lifecycle and the page pool.
// It is safe for concurrent use.
type Scraper struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	cfg         config.BrowserConfig
	activePages atomic.Int32
	startTime   time.Time
}

// NewScraper launches a headless browser and initialises the reusable page pool.
func NewScraper(cfg config.BrowserConfig) (*Scraper, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewRunError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewRunError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	maxPages := cfg.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}
	slog.Info("page pool created", "maxPages", maxPages)

	return &Scraper{
		browser:   browser,
		pagePool:  rod.NewPagePool(maxPages),
		cfg:       cfg,
		startTime: time.Now(),
	}, nil
}

// NewSession borrows a tab from the pool and prepares it for a run.
// The caller must Close the session to return the tab.
func (s *Scraper) NewSession(ctx context.Context, nextSelector string) (*BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := s.pagePool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewRunError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}
	s.activePages.Add(1)

	return newBrowserSession(s, page, nextSelector), nil
}

// release returns a tab to the pool after blanking it so the previous
// listing's DOM is not retained.
func (s *Scraper) release(page *rod.Page) {
	if err := page.Navigate("about:blank"); err != nil {
		slog.Warn("cleanup: failed to navigate to about:blank", "error", err)
	}
	s.pagePool.Put(page)
	s.activePages.Add(-1)
}

// Stats returns a snapshot of the pool's current state.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:      s.cfg.MaxPages,
		ActivePages:   int(s.activePages.Load()),
		BrowserUptime: s.Uptime().Round(time.Second).String(),
	}
}

// Uptime reports how long the browser has been running.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Close drains the page pool and kills the browser process.
// Call this on graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("scraper shutting down: closing browser")
	if err := s.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	slog.Info("scraper shutdown complete")
}
