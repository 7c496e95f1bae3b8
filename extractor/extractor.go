// Package extractor turns a loaded listing page into ordered records.
package extractor

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/sortcheck/models"
	"golang.org/x/net/html"
)

// Selectors locates the parts of a listing item.
//
// Item matches the item container. Title is searched inside the container;
// Score, Age and Author are searched inside the container's next sibling
// element, which holds the item's metadata line.
type Selectors struct {
	Item    string
	Title   string
	Score   string
	Age     string
	Author  string
	AgeAttr string
}

// DefaultSelectors matches the Hacker News listing markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:    ".athing",
		Title:   ".titleline > a",
		Score:   ".score",
		Age:     ".age",
		Author:  ".hnuser",
		AgeAttr: "title",
	}
}

// Extractor holds compiled selectors. It is safe for concurrent use.
type Extractor struct {
	item    cascadia.Selector
	title   cascadia.Selector
	score   cascadia.Selector
	age     cascadia.Selector
	author  cascadia.Selector
	ageAttr string
}

// New compiles sel. An invalid selector is reported here rather than on
// every page.
func New(sel Selectors) (*Extractor, error) {
	compiled := make([]cascadia.Selector, 0, 5)
	for _, s := range []struct{ name, expr string }{
		{"item", sel.Item},
		{"title", sel.Title},
		{"score", sel.Score},
		{"age", sel.Age},
		{"author", sel.Author},
	} {
		if strings.TrimSpace(s.expr) == "" {
			return nil, fmt.Errorf("extractor: %s selector is empty", s.name)
		}
		c, err := cascadia.Compile(s.expr)
		if err != nil {
			return nil, fmt.Errorf("extractor: %s selector %q: %w", s.name, s.expr, err)
		}
		compiled = append(compiled, c)
	}

	return &Extractor{
		item:    compiled[0],
		title:   compiled[1],
		score:   compiled[2],
		age:     compiled[3],
		author:  compiled[4],
		ageAttr: sel.AgeAttr,
	}, nil
}

// Extract returns the records visible on the page, top to bottom.
// Items without a title or an age label are skipped.
func (e *Extractor) Extract(snap models.PageSnapshot) []models.Record {
	root, err := html.Parse(strings.NewReader(snap.HTML))
	if err != nil {
		slog.Debug("extractor: unparseable page", "url", snap.URL, "error", err)
		return nil
	}
	doc := goquery.NewDocumentFromNode(root)

	base, _ := url.Parse(snap.URL)

	var records []models.Record
	doc.FindMatcher(e.item).Each(func(_ int, item *goquery.Selection) {
		if rec, ok := e.extractItem(item, base); ok {
			records = append(records, rec)
		}
	})
	return records
}

func (e *Extractor) extractItem(item *goquery.Selection, base *url.URL) (models.Record, bool) {
	titleEl := item.FindMatcher(e.title).First()
	meta := item.Next()
	ageEl := meta.FindMatcher(e.age).First()
	if titleEl.Length() == 0 || ageEl.Length() == 0 {
		return models.Record{}, false
	}

	title := strings.TrimSpace(titleEl.Text())
	age := ageLabel(ageEl, e.ageAttr)
	if title == "" || age == "" {
		return models.Record{}, false
	}

	rec := models.Record{
		Title:   title,
		URL:     resolveHref(titleEl, base),
		Author:  models.UnknownAuthor,
		Score:   models.NoScore,
		Age:     age,
		SortKey: SortKey(age),
	}
	if s := meta.FindMatcher(e.score).First(); s.Length() > 0 {
		rec.Score = strings.TrimSpace(s.Text())
	}
	if a := meta.FindMatcher(e.author).First(); a.Length() > 0 {
		if name := strings.TrimSpace(a.Text()); name != "" {
			rec.Author = name
		}
	}
	return rec, true
}

// ageLabel prefers the precise attribute and falls back to the visible text.
func ageLabel(el *goquery.Selection, attr string) string {
	if attr != "" {
		if v, ok := el.Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return strings.TrimSpace(el.Text())
}

func resolveHref(el *goquery.Selection, base *url.URL) string {
	href, ok := el.Attr("href")
	if !ok || href == "" {
		return ""
	}
	if base == nil {
		return href
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return href
	}
	return resolved.String()
}
