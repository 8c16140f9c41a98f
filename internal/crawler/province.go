package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-weather-crawler/internal/extract"
	"github.com/JakeFAU/realtime-weather-crawler/internal/fetcher"
	"github.com/JakeFAU/realtime-weather-crawler/internal/metrics"
	"github.com/JakeFAU/realtime-weather-crawler/internal/weather"
)

// ProvincePlaceholder is replaced by the ProvinceID in the listing template.
const ProvincePlaceholder = "{province}"

// Defaults for tianqi.moji.com.
const (
	DefaultListingURLTemplate  = "https://tianqi.moji.com/weather/china/" + ProvincePlaceholder + "/"
	DefaultHotCityLinkSelector = ".city_hot a"
)

// Fetcher retrieves a page body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetcher.Page, error)
}

// Config controls how listing pages are located and parsed.
type Config struct {
	ListingURLTemplate  string
	HotCityLinkSelector string
}

// ProvinceCrawler discovers detail-page URLs from province listing pages.
// Listing fetches are not gated by the permit pool.
type ProvinceCrawler struct {
	template string
	links    cascadia.Selector
	fetcher  Fetcher
	logger   *zap.Logger
}

// NewProvinceCrawler validates cfg and compiles the link selector.
func NewProvinceCrawler(cfg Config, f Fetcher, logger *zap.Logger) (*ProvinceCrawler, error) {
	if cfg.ListingURLTemplate == "" {
		cfg.ListingURLTemplate = DefaultListingURLTemplate
	}
	if cfg.HotCityLinkSelector == "" {
		cfg.HotCityLinkSelector = DefaultHotCityLinkSelector
	}
	if !strings.Contains(cfg.ListingURLTemplate, ProvincePlaceholder) {
		return nil, fmt.Errorf("listing url template %q must contain %s", cfg.ListingURLTemplate, ProvincePlaceholder)
	}
	if _, err := url.Parse(strings.ReplaceAll(cfg.ListingURLTemplate, ProvincePlaceholder, "x")); err != nil {
		return nil, fmt.Errorf("parse listing url template: %w", err)
	}
	links, err := extract.Compile("hotCityLink", cfg.HotCityLinkSelector)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvinceCrawler{
		template: cfg.ListingURLTemplate,
		links:    links,
		fetcher:  f,
		logger:   logger,
	}, nil
}

// ListingURL builds the listing page URL for id.
func (c *ProvinceCrawler) ListingURL(id weather.ProvinceID) string {
	return strings.ReplaceAll(c.template, ProvincePlaceholder, string(id))
}

// ListDetailURLs fetches the listing page for id and returns its hot-city
// links as a single-use sequence. Relative hrefs are resolved against the
// listing URL. A link without a usable href yields a MissingHref CrawlError
// in its place and the sequence continues.
func (c *ProvinceCrawler) ListDetailURLs(
	ctx context.Context,
	id weather.ProvinceID,
) (iter.Seq2[weather.DetailURL, error], error) {
	listingURL := c.ListingURL(id)

	start := time.Now()
	page, err := c.fetcher.Fetch(ctx, listingURL)
	metrics.ObserveFetch("listing", time.Since(start))
	if err != nil {
		kind := KindFetchFailed
		if errors.Is(err, fetcher.ErrUndecodableBody) {
			kind = KindUndecodable
		}
		return nil, &CrawlError{Province: id, URL: listingURL, Kind: kind, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &CrawlError{Province: id, URL: listingURL, Kind: KindUndecodable, Err: err}
	}
	base, err := url.Parse(firstNonEmpty(page.FinalURL, listingURL))
	if err != nil {
		return nil, &CrawlError{Province: id, URL: listingURL, Kind: KindFetchFailed, Err: err}
	}

	links := doc.FindMatcher(c.links)
	c.logger.Debug("listing parsed",
		zap.String("province", string(id)),
		zap.Int("links", links.Length()),
	)

	var consumed atomic.Bool
	return func(yield func(weather.DetailURL, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}
		links.EachWithBreak(func(i int, s *goquery.Selection) bool {
			href, ok := s.Attr("href")
			if !ok || strings.TrimSpace(href) == "" {
				return yield("", &CrawlError{
					Province: id,
					URL:      listingURL,
					Kind:     KindMissingHref,
					Err:      fmt.Errorf("link %d has no href", i),
				})
			}
			ref, err := url.Parse(strings.TrimSpace(href))
			if err != nil {
				return yield("", &CrawlError{Province: id, URL: listingURL, Kind: KindBadHref, Err: err})
			}
			return yield(weather.DetailURL(base.ResolveReference(ref).String()), nil)
		})
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
