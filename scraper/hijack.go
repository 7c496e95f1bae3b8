package scraper

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to Rod protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// adDomains are ad and tracking hosts failed when ad blocking is on.
// Subdomains match too.
var adDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"googletagservices.com": {},
	"facebook.net":          {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"amazon-adsystem.com":   {},
	"criteo.com":            {},
	"outbrain.com":          {},
	"taboola.com":           {},
	"scorecardresearch.com": {},
	"quantserve.com":        {},
	"hotjar.com":            {},
	"segment.io":            {},
	"chartbeat.com":         {},
	"consensu.org":          {},
}

func isAdDomain(host string) bool {
	host = strings.ToLower(host)
	for {
		if _, ok := adDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

// blocker decides which requests a session page may make. Listing pages
// only need the document itself for extraction.
type blocker struct {
	types    map[proto.NetworkResourceType]struct{}
	blockAds bool
}

func newBlocker(typeNames []string, blockAds bool) *blocker {
	b := &blocker{
		types:    make(map[proto.NetworkResourceType]struct{}, len(typeNames)),
		blockAds: blockAds,
	}
	for _, name := range typeNames {
		if rt, ok := resourceTypes[name]; ok {
			b.types[rt] = struct{}{}
		}
	}
	return b
}

func (b *blocker) empty() bool {
	return len(b.types) == 0 && !b.blockAds
}

func (b *blocker) shouldBlock(rt proto.NetworkResourceType, rawURL string) bool {
	if rt == proto.NetworkResourceTypeDocument {
		return false
	}
	if _, ok := b.types[rt]; ok {
		return true
	}
	if b.blockAds {
		if u, err := url.Parse(rawURL); err == nil && isAdDomain(u.Hostname()) {
			return true
		}
	}
	return false
}

// setupHijack intercepts every request on page and fails those the blocker
// rejects. It returns nil when nothing is blocked; otherwise the caller
// stops the returned router.
func setupHijack(page *rod.Page, b *blocker) *rod.HijackRouter {
	if b.empty() {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if b.shouldBlock(h.Request.Type(), h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()
	return router
}
