package product

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"sjsage522/pricewatch/helpers"
	"sjsage522/pricewatch/internal/money"
	"sjsage522/pricewatch/logger"
)

// DefaultThrottle is the pause after each successful page fetch
const DefaultThrottle = 800 * time.Millisecond

// Observation is one extraction result for a product page
type Observation struct {
	Query      string
	Location   string
	Name       string
	Price      decimal.NullDecimal
	ObservedAt time.Time
}

// HasPrice reports whether a price was found on the page
func (o Observation) HasPrice() bool {
	return o.Price.Valid
}

// SkipReason says why a candidate produced no observation
type SkipReason string

const (
	SkipFetch SkipReason = "fetch"
	SkipParse SkipReason = "parse"
)

// Skip describes a candidate that was dropped from the sweep
type Skip struct {
	Location string
	Reason   SkipReason
	Err      error
}

// Result holds either an Observation or a Skip
type Result struct {
	Observation *Observation
	Skip        *Skip
}

// Sleeper pauses between requests
type Sleeper func(ctx context.Context, d time.Duration) error

// Extractor reads product pages
type Extractor struct {
	fetcher  helpers.Fetcher
	throttle time.Duration
	sleep    Sleeper
	now      func() time.Time
	log      *logger.Logger
}

// Option customizes an Extractor
type Option func(*Extractor)

// WithSleeper replaces the pause implementation
func WithSleeper(s Sleeper) Option {
	return func(e *Extractor) { e.sleep = s }
}

// WithClock replaces the observation clock
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// NewExtractor creates an extractor that pauses for throttle after each successful fetch
func NewExtractor(fetcher helpers.Fetcher, throttle time.Duration, opts ...Option) *Extractor {
	e := &Extractor{
		fetcher:  fetcher,
		throttle: throttle,
		sleep:    sleepContext,
		now:      time.Now,
		log:      logger.ForComponent("product"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract fetches location and builds an observation for query.
// Failures never escape: they come back as a Skip.
func (e *Extractor) Extract(ctx context.Context, query, location string) Result {
	body, err := e.fetcher.Fetch(ctx, location)
	if err != nil {
		return e.skip(location, SkipFetch, err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return e.skip(location, SkipParse, err)
	}

	obs := &Observation{
		Query:      query,
		Location:   location,
		Name:       headingName(doc, location),
		ObservedAt: e.now(),
	}
	if price, ok := money.FindMarkedAmount(VisibleText(doc)); ok {
		obs.Price = decimal.NewNullDecimal(price)
	}

	if e.throttle > 0 {
		// a cancelled pause still returns the observation; the caller checks ctx
		_ = e.sleep(ctx, e.throttle)
	}

	return Result{Observation: obs}
}

func (e *Extractor) skip(location string, reason SkipReason, err error) Result {
	e.log.Warn().
		Str("location", location).
		Str("reason", string(reason)).
		Err(err).
		Msg("Skipping candidate")
	return Result{Skip: &Skip{Location: location, Reason: reason, Err: err}}
}

// headingName returns the first h1 text, or fallback when there is none.
// Nested elements are separated by a space.
func headingName(doc *goquery.Document, fallback string) string {
	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		return fallback
	}
	name := helpers.CollapseSpaces(strings.Join(textNodes(h1.Nodes), " "))
	if name == "" {
		return fallback
	}
	return name
}

// title is kept: a price in it is part of the page text
var invisibleElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
}

// VisibleText returns the document's text nodes, trimmed, one per line
func VisibleText(doc *goquery.Document) string {
	return strings.Join(textNodes(doc.Nodes), "\n")
}

// textNodes collects the trimmed, non-empty text under nodes in document order
func textNodes(nodes []*html.Node) []string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && invisibleElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return parts
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
