// Package weather defines the values that flow through a harvest run.
package weather

import (
	"fmt"
	"time"
)

// ProvinceID identifies one province listing page, e.g. "beijing".
type ProvinceID string

// DetailURL is the absolute URL of one location's weather page.
type DetailURL string

// Reading is the weather extracted from a single detail page.
type Reading struct {
	AreaName    string
	Temperature string
	URL         DetailURL
}

// String renders the reading as "<area> <temperature>".
func (r Reading) String() string {
	return fmt.Sprintf("%s %s", r.AreaName, r.Temperature)
}

// Outcome is the terminal result of processing one DetailURL. Exactly one of
// Reading and Err is set.
type Outcome struct {
	URL     DetailURL
	Reading *Reading
	Err     error
}

// Succeeded reports whether the outcome carries a reading.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Reading != nil
}

// Success builds a successful Outcome.
func Success(reading Reading) Outcome {
	return Outcome{URL: reading.URL, Reading: &reading}
}

// Failure builds a failed Outcome for url.
func Failure(url DetailURL, err error) Outcome {
	return Outcome{URL: url, Err: err}
}

// Summary aggregates the counters of one harvest run.
type Summary struct {
	RunID           string
	Provinces       int
	ProvincesFailed int
	Dispatched      int
	Duplicates      int
	Succeeded       int
	Failed          int
	Elapsed         time.Duration
}
