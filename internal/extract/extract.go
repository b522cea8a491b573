// Package extract parses DOM snapshots into extracted records with goquery.
// Selectors are configuration; the defaults target the public profile and
// reactions-list markup.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

// ErrSelectorNotFound means the page did not contain the required element.
var ErrSelectorNotFound = errors.New("selector not found")

// Selectors locate fields in the page snapshot.
type Selectors struct {
	ProfileName     string `mapstructure:"profile_name"`
	ProfileHeadline string `mapstructure:"profile_headline"`
	ProfileLocation string `mapstructure:"profile_location"`
	ProfileAbout    string `mapstructure:"profile_about"`
	ReactorItem     string `mapstructure:"reactor_item"`
	ReactorLink     string `mapstructure:"reactor_link"`
	ReactorName     string `mapstructure:"reactor_name"`
	ReactorHeadline string `mapstructure:"reactor_headline"`
}

// DefaultSelectors returns the selectors used when configuration is silent.
func DefaultSelectors() Selectors {
	return Selectors{
		ProfileName:     "h1",
		ProfileHeadline: "div.text-body-medium.break-words",
		ProfileLocation: "span.text-body-small.inline.t-black--light.break-words",
		ProfileAbout:    "#about ~ div.display-flex span[aria-hidden='true']",
		ReactorItem:     "li.social-details-reactors-tab-body-list-item",
		ReactorLink:     "a[href*='/in/']",
		ReactorName:     ".artdeco-entity-lockup__title span[aria-hidden='true']",
		ReactorHeadline: ".artdeco-entity-lockup__caption",
	}
}

func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&s.ProfileName, d.ProfileName)
	fill(&s.ProfileHeadline, d.ProfileHeadline)
	fill(&s.ProfileLocation, d.ProfileLocation)
	fill(&s.ProfileAbout, d.ProfileAbout)
	fill(&s.ReactorItem, d.ReactorItem)
	fill(&s.ReactorLink, d.ReactorLink)
	fill(&s.ReactorName, d.ReactorName)
	fill(&s.ReactorHeadline, d.ReactorHeadline)
	return s
}

// Extractor parses snapshots using a fixed selector set.
type Extractor struct {
	sel   Selectors
	clock scrape.Clock
}

// New builds an Extractor. Empty selectors fall back to the defaults.
func New(sel Selectors, clock scrape.Clock) *Extractor {
	return &Extractor{sel: sel.withDefaults(), clock: clock}
}

// Profile extracts the record for the profile rendered at pageURL.
func (e *Extractor) Profile(html, pageURL string) (scrape.ExtractedRecord, error) {
	id, err := NormalizeProfileURL(pageURL)
	if err != nil {
		return scrape.ExtractedRecord{}, err
	}
	doc, err := parse(html)
	if err != nil {
		return scrape.ExtractedRecord{}, err
	}
	name := text(doc.Selection, e.sel.ProfileName)
	if name == "" {
		return scrape.ExtractedRecord{}, fmt.Errorf("profile name %q: %w", e.sel.ProfileName, ErrSelectorNotFound)
	}
	return scrape.ExtractedRecord{
		ID:          id,
		URL:         id,
		Name:        name,
		Headline:    text(doc.Selection, e.sel.ProfileHeadline),
		Location:    text(doc.Selection, e.sel.ProfileLocation),
		Text:        text(doc.Selection, e.sel.ProfileAbout),
		SourceURL:   pageURL,
		ExtractedAt: e.clock.Now(),
	}, nil
}

// Reactors extracts one record per person in the reactions list. Entries
// without a resolvable profile link are skipped. An empty list is not an
// error.
func (e *Extractor) Reactors(html, postURL string) ([]scrape.ExtractedRecord, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}
	items := doc.Find(e.sel.ReactorItem)
	now := e.clock.Now()
	out := make([]scrape.ExtractedRecord, 0, items.Length())
	items.Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find(e.sel.ReactorLink).First().Attr("href")
		if !ok {
			return
		}
		abs, err := resolve(postURL, href)
		if err != nil {
			return
		}
		id, err := NormalizeProfileURL(abs)
		if err != nil {
			return
		}
		name := text(item, e.sel.ReactorName)
		if name == "" {
			name = strings.TrimSpace(item.Find(e.sel.ReactorLink).First().Text())
		}
		out = append(out, scrape.ExtractedRecord{
			ID:          id,
			URL:         id,
			Name:        name,
			Headline:    text(item, e.sel.ReactorHeadline),
			SourceURL:   postURL,
			ExtractedAt: now,
		})
	})
	return out, nil
}

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return doc, nil
}

// text returns the collapsed text of the first match.
func text(s *goquery.Selection, selector string) string {
	return strings.Join(strings.Fields(s.Find(selector).First().Text()), " ")
}
