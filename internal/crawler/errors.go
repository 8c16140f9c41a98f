package crawler

import (
	"fmt"

	"github.com/JakeFAU/realtime-weather-crawler/internal/weather"
)

// CrawlErrorKind classifies a CrawlError.
type CrawlErrorKind string

// Crawl error kinds.
const (
	KindFetchFailed CrawlErrorKind = "fetch_failed"
	KindUndecodable CrawlErrorKind = "undecodable"
	KindMissingHref CrawlErrorKind = "missing_href"
	KindBadHref     CrawlErrorKind = "bad_href"
)

// CrawlError reports a problem with a province listing page.
type CrawlError struct {
	Province weather.ProvinceID
	URL      string
	Kind     CrawlErrorKind
	Err      error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl province %s (%s): %s: %v", e.Province, e.URL, e.Kind, e.Err)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}
