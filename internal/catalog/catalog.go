package catalog

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/pricewatch/helpers"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/services/cache"

	werrors "sjsage522/pricewatch/pkg/errors"
)

const component = "catalog"

// DefaultMaxCandidates bounds the product pages fetched per query
const DefaultMaxCandidates = 10

// productPathMarkers identify product pages in the retailer's URL scheme
var productPathMarkers = []string{"/produto/", "/p/"}

// Config contains configuration for a Resolver
type Config struct {
	// Origin is the site root, e.g. https://www.drogasil.com.br
	Origin string
	// SearchPath and QueryParam build the search URL: Origin + SearchPath + "?" + QueryParam + "=" + query
	SearchPath    string
	QueryParam    string
	MaxCandidates int
}

// DefaultConfig returns the settings for origin
func DefaultConfig(origin string) Config {
	return Config{
		Origin:        strings.TrimRight(origin, "/"),
		SearchPath:    "/search",
		QueryParam:    "w",
		MaxCandidates: DefaultMaxCandidates,
	}
}

// Resolver turns a search query into candidate product page URLs
type Resolver struct {
	cfg     Config
	fetcher helpers.Fetcher
	guard   *cache.Guard
	log     *logger.Logger
}

// NewResolver creates a resolver. guard may be nil.
func NewResolver(cfg Config, fetcher helpers.Fetcher, guard *cache.Guard) *Resolver {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultMaxCandidates
	}
	return &Resolver{
		cfg:     cfg,
		fetcher: fetcher,
		guard:   guard,
		log:     logger.ForComponent(component),
	}
}

// SearchURL returns the search page URL for query
func (r *Resolver) SearchURL(query string) string {
	return r.cfg.Origin + r.cfg.SearchPath + "?" + r.cfg.QueryParam + "=" + url.QueryEscape(query)
}

// Resolve fetches the search page for query and returns the unique product
// links in page order, capped to MaxCandidates. Any failure is returned as is;
// the caller treats it as fatal.
func (r *Resolver) Resolve(ctx context.Context, query string) ([]string, error) {
	if blocked, remaining := r.guard.Blocked(); blocked {
		return nil, werrors.NewRateLimit(component, remaining)
	}

	searchURL := r.SearchURL(query)
	body, err := r.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		r.rememberRateLimit(err)
		return nil, werrors.NewNetwork(component, "search request failed for "+strconv.Quote(query), err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, werrors.NewParsing(component, "search page parse failed for "+strconv.Quote(query), err)
	}

	links := r.collect(doc)
	candidates := links.First(r.cfg.MaxCandidates)

	r.log.Debug().
		Str("query", query).
		Int("unique_links", links.Len()).
		Int("candidates", len(candidates)).
		Msg("Resolved search results")

	return candidates, nil
}

// collect gathers every product link of the document into an ordered set
func (r *Resolver) collect(doc *goquery.Document) *LinkSet {
	links := NewLinkSet()
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !isProductLink(href) {
			return
		}
		links.Add(r.ResolveURL(href))
	})
	return links
}

// ResolveURL makes a site-relative link absolute using the origin
func (r *Resolver) ResolveURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		scheme := "https:"
		if u, err := url.Parse(r.cfg.Origin); err == nil && u.Scheme != "" {
			scheme = u.Scheme + ":"
		}
		return scheme + href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return r.cfg.Origin + href
}

func (r *Resolver) rememberRateLimit(err error) {
	var statusErr *helpers.StatusError
	if !errors.As(err, &statusErr) || !statusErr.RateLimited() {
		return
	}
	var retryAfter time.Duration
	if secs, convErr := strconv.Atoi(statusErr.RetryAfter); convErr == nil {
		retryAfter = time.Duration(secs) * time.Second
	}
	if blockErr := r.guard.Block(retryAfter); blockErr != nil {
		r.log.Warn().Err(blockErr).Msg("Failed to record search block")
	}
}

func isProductLink(href string) bool {
	for _, marker := range productPathMarkers {
		if strings.Contains(href, marker) {
			return true
		}
	}
	return false
}
