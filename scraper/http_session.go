package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/sortcheck/models"
)

const (
	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	maxBody = 10 << 20
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only, since http.Transport cannot speak h2 over a utls connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// NewHTTPClient returns a client that presents a Chrome TLS fingerprint.
// proxy, if set, must be an http or https proxy URL.
func NewHTTPClient(proxy string) *http.Client {
	transport := &http.Transport{
		DialTLSContext:    dialTLSChrome,
		ForceAttemptHTTP2: false,
		// Bodies are decoded by decodeBody.
		DisableCompression: true,
	}
	if proxy != "" {
		if u, err := url.Parse(proxy); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// HTTPSession pages through a listing with plain GET requests. It sees only
// server-rendered markup, so it suits listings whose next-page control is
// an ordinary link.
type HTTPSession struct {
	client       *http.Client
	nextSelector string

	snap models.PageSnapshot
	doc  *goquery.Document
}

// NewHTTPSession creates a session using client. A nil client gets
// NewHTTPClient("").
func NewHTTPSession(client *http.Client, nextSelector string) *HTTPSession {
	if client == nil {
		client = NewHTTPClient("")
	}
	return &HTTPSession{client: client, nextSelector: nextSelector}
}

// Load fetches target and parses it as the current page.
func (h *HTTPSession) Load(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("fetch %s: HTTP %d", target, resp.StatusCode)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return fmt.Errorf("read %s: %w", target, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", target, err)
	}

	h.doc = doc
	h.snap = models.PageSnapshot{URL: resp.Request.URL.String(), HTML: string(body)}
	return nil
}

// decodeBody reads at most maxBody bytes of the response, undoing any
// gzip or brotli content encoding.
func decodeBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	case "br":
		r = brotli.NewReader(resp.Body)
	}
	return io.ReadAll(io.LimitReader(r, maxBody))
}

// WaitForSelector checks the fetched document once. A static page will not
// change, so there is nothing to wait for.
func (h *HTTPSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.doc == nil {
		return fmt.Errorf("no page loaded")
	}
	if h.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("selector %q not present in %s", selector, h.snap.URL)
	}
	return nil
}

// Snapshot returns the last fetched page.
func (h *HTTPSession) Snapshot(ctx context.Context) (models.PageSnapshot, error) {
	if h.doc == nil {
		return models.PageSnapshot{}, fmt.Errorf("no page loaded")
	}
	return h.snap, nil
}

// HasNext reports whether the page carries a next-page link.
func (h *HTTPSession) HasNext(ctx context.Context) (bool, error) {
	href, err := h.nextHref()
	if err != nil {
		return false, err
	}
	return href != "", nil
}

// Advance follows the next-page link.
func (h *HTTPSession) Advance(ctx context.Context) error {
	href, err := h.nextHref()
	if err != nil {
		return err
	}
	if href == "" {
		return fmt.Errorf("next-page link %q not found", h.nextSelector)
	}

	base, err := url.Parse(h.snap.URL)
	if err != nil {
		return fmt.Errorf("parse page url: %w", err)
	}
	next, err := base.Parse(href)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", href, err)
	}
	return h.Load(ctx, next.String())
}

// WaitForQuiescence returns immediately; Advance already holds the full
// response.
func (h *HTTPSession) WaitForQuiescence(ctx context.Context, quiet time.Duration) error {
	return ctx.Err()
}

// Close releases idle connections.
func (h *HTTPSession) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

func (h *HTTPSession) nextHref() (string, error) {
	if h.doc == nil {
		return "", fmt.Errorf("no page loaded")
	}
	href, _ := h.doc.Find(h.nextSelector).First().Attr("href")
	return strings.TrimSpace(href), nil
}
