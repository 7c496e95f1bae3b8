package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/sortcheck/models"
	"github.com/ysmood/gson"
)

// BrowserSession drives one pooled tab through a paginated listing.
// It is not safe for concurrent use; a run owns its session.
type BrowserSession struct {
	scraper      *Scraper
	page         *rod.Page
	router       *rod.HijackRouter
	nextSelector string
	prepared     bool

	// pendingNav is armed by Advance and consumed by WaitForQuiescence.
	pendingNav func()
}

func newBrowserSession(s *Scraper, page *rod.Page, nextSelector string) *BrowserSession {
	return &BrowserSession{scraper: s, page: page, nextSelector: nextSelector}
}

// prepare installs stealth evasions, headers and the request blocker.
// These only take effect for navigations that start afterwards.
func (b *BrowserSession) prepare(target string) {
	if b.prepared {
		return
	}
	b.prepared = true

	if b.scraper.cfg.Stealth {
		if _, err := b.page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
		headers := map[string]string{
			"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
		}
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}).Call(b.page); err != nil {
			slog.Debug("failed to set extra headers", "error", err)
		}
	}

	b.router = setupHijack(b.page, newBlocker(b.scraper.cfg.BlockedResourceTypes, b.scraper.cfg.BlockAds))
}

// Load navigates to target and waits for the load event.
func (b *BrowserSession) Load(ctx context.Context, target string) error {
	b.prepare(target)

	p := b.page.Context(ctx)
	if t := b.scraper.cfg.NavigationTimeout; t > 0 {
		p = p.Timeout(t)
	}
	if err := p.Navigate(target); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", target, err)
	}
	return nil
}

// WaitForSelector blocks until selector matches or timeout elapses.
func (b *BrowserSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if _, err := b.page.Context(ctx).Timeout(timeout).Element(selector); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

// Snapshot returns the rendered DOM and the page's current URL.
func (b *BrowserSession) Snapshot(ctx context.Context) (models.PageSnapshot, error) {
	p := b.page.Context(ctx)

	html, err := p.HTML()
	if err != nil {
		return models.PageSnapshot{}, fmt.Errorf("read page html: %w", err)
	}

	snap := models.PageSnapshot{HTML: html}
	if info, err := p.Info(); err == nil {
		snap.URL = info.URL
	}
	return snap, nil
}

// HasNext reports whether the next-page control is present. It does not wait.
func (b *BrowserSession) HasNext(ctx context.Context) (bool, error) {
	has, _, err := b.page.Context(ctx).Has(b.nextSelector)
	if err != nil {
		return false, fmt.Errorf("look up %q: %w", b.nextSelector, err)
	}
	return has, nil
}

// Advance clicks the next-page control. The navigation listener is armed
// before the click so the subsequent network-idle event is not missed.
func (b *BrowserSession) Advance(ctx context.Context) error {
	p := b.page.Context(ctx)

	has, el, err := p.Has(b.nextSelector)
	if err != nil {
		return fmt.Errorf("look up %q: %w", b.nextSelector, err)
	}
	if !has {
		return fmt.Errorf("next-page control %q disappeared", b.nextSelector)
	}

	wait, err := waitNextDocumentIdle(p)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", b.nextSelector, err)
	}
	b.pendingNav = wait
	return nil
}

// waitNextDocumentIdle subscribes to lifecycle events and returns a wait func
// that resolves on network idle of a main-frame document other than the one
// currently loaded. A late idle event from the current document is ignored.
func waitNextDocumentIdle(p *rod.Page) (func(), error) {
	tree, err := proto.PageGetFrameTree{}.Call(p)
	if err != nil {
		return nil, fmt.Errorf("read frame tree: %w", err)
	}
	if err := (proto.PageSetLifecycleEventsEnabled{Enabled: true}).Call(p); err != nil {
		return nil, fmt.Errorf("enable lifecycle events: %w", err)
	}

	frame := tree.FrameTree.Frame
	return p.EachEvent(func(e *proto.PageLifecycleEvent) bool {
		return isNextDocumentIdle(e, frame.ID, frame.LoaderID)
	}), nil
}

func isNextDocumentIdle(e *proto.PageLifecycleEvent, frameID proto.PageFrameID, current proto.NetworkLoaderID) bool {
	return e.Name == proto.PageLifecycleEventNameNetworkIdle &&
		e.FrameID == frameID &&
		e.LoaderID != current
}

// WaitForQuiescence waits for the navigation started by Advance to reach
// network idle, then gives the DOM quiet to settle.
func (b *BrowserSession) WaitForQuiescence(ctx context.Context, quiet time.Duration) error {
	if wait := b.pendingNav; wait != nil {
		b.pendingNav = nil
		wait()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.page.Context(ctx).WaitDOMStable(quiet, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	return ctx.Err()
}

// Close stops request interception and returns the tab to the pool.
func (b *BrowserSession) Close() error {
	if b.router != nil {
		if err := b.router.Stop(); err != nil {
			slog.Debug("hijack router stop failed", "error", err)
		}
	}
	b.scraper.release(b.page)
	return nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
