package runner

import (
	"context"
	"fmt"

	"github.com/use-agent/sortcheck/config"
	"github.com/use-agent/sortcheck/engine"
	"github.com/use-agent/sortcheck/extractor"
	"github.com/use-agent/sortcheck/models"
	"github.com/use-agent/sortcheck/scraper"
)

// Fetcher names accepted by SORTCHECK_FETCHER.
const (
	FetcherBrowser = "browser"
	FetcherHTTP    = "http"
)

// NewEngine builds an Engine for the configured listing.
func NewEngine(cfg *config.Config) (*engine.Engine, error) {
	ex, err := extractor.New(extractor.Selectors{
		Item:    cfg.Source.ItemSelector,
		Title:   cfg.Source.TitleSelector,
		Score:   cfg.Source.ScoreSelector,
		Age:     cfg.Source.AgeSelector,
		Author:  cfg.Source.AuthorSelector,
		AgeAttr: cfg.Source.AgeAttribute,
	})
	if err != nil {
		return nil, models.NewRunError(models.ErrCodeInvalidInput, "invalid source selectors", err)
	}

	return engine.New(engine.Options{
		StartURL:        cfg.Source.StartURL,
		ItemSelector:    cfg.Source.ItemSelector,
		SelectorTimeout: cfg.Run.SelectorTimeout,
		QuietInterval:   cfg.Run.QuietInterval,
		RunDeadline:     cfg.Run.Deadline,
	}, ex), nil
}

// PageSource is the configured fetcher: a session factory plus the shared
// resources behind it.
type PageSource struct {
	Sessions SessionFactory
	// PoolStats is nil for fetchers without a browser pool.
	PoolStats func() models.PoolStats
	Close     func()
}

// NewPageSource builds the page source for the configured fetcher. Callers
// must call Close to release shared resources such as the browser.
func NewPageSource(cfg *config.Config) (*PageSource, error) {
	switch cfg.Source.Fetcher {
	case FetcherHTTP:
		return &PageSource{
			Sessions: func(ctx context.Context) (Session, error) {
				return scraper.NewHTTPSession(scraper.NewHTTPClient(cfg.Browser.DefaultProxy), cfg.Source.NextSelector), nil
			},
			Close: func() {},
		}, nil

	case FetcherBrowser, "":
		sc, err := scraper.NewScraper(cfg.Browser)
		if err != nil {
			return nil, err
		}
		return &PageSource{
			Sessions: func(ctx context.Context) (Session, error) {
				sess, err := sc.NewSession(ctx, cfg.Source.NextSelector)
				if err != nil {
					return nil, err
				}
				return sess, nil
			},
			PoolStats: sc.Stats,
			Close:     sc.Close,
		}, nil

	default:
		return nil, models.NewRunError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown fetcher %q (want %q or %q)", cfg.Source.Fetcher, FetcherBrowser, FetcherHTTP), nil)
	}
}
