// Package task runs the fetch-and-extract pipeline for one detail page.
package task

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-weather-crawler/internal/fetcher"
	"github.com/JakeFAU/realtime-weather-crawler/internal/metrics"
	"github.com/JakeFAU/realtime-weather-crawler/internal/report"
	"github.com/JakeFAU/realtime-weather-crawler/internal/weather"
)

// Permits hands out concurrency permits.
type Permits interface {
	Acquire(ctx context.Context) (func(), error)
}

// Throttle delays a request before it is issued.
type Throttle interface {
	Wait(ctx context.Context, rawURL string) error
}

// Fetcher retrieves a page body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetcher.Page, error)
}

// Extractor turns a detail page into a reading.
type Extractor interface {
	Extract(markup []byte) (weather.Reading, error)
}

// Runner executes tasks. A single Runner is shared by every task of a run.
type Runner struct {
	permits   Permits
	throttle  Throttle
	fetcher   Fetcher
	extractor Extractor
	reporter  report.Reporter
	logger    *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(
	permits Permits,
	throttle Throttle,
	fetcher Fetcher,
	extractor Extractor,
	reporter report.Reporter,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		permits:   permits,
		throttle:  throttle,
		fetcher:   fetcher,
		extractor: extractor,
		reporter:  reporter,
		logger:    logger,
	}
}

// Run processes url and reports the outcome before returning it. The permit
// is held across the delay and the fetch, and released on every path.
// Failures never escape as errors or panics.
func (r *Runner) Run(ctx context.Context, url weather.DetailURL) (outcome weather.Outcome) {
	defer func() { r.settle(outcome) }()
	defer func() {
		if p := recover(); p != nil {
			outcome = weather.Failure(url, fmt.Errorf("task panic: %v", p))
		}
	}()

	release, err := r.permits.Acquire(ctx)
	if err != nil {
		return weather.Failure(url, err)
	}
	defer release()

	if err := r.throttle.Wait(ctx, string(url)); err != nil {
		return weather.Failure(url, err)
	}

	start := time.Now()
	page, err := r.fetcher.Fetch(ctx, string(url))
	metrics.ObserveFetch("detail", time.Since(start))
	if err != nil {
		return weather.Failure(url, err)
	}

	reading, err := r.extractor.Extract(page.Body)
	if err != nil {
		return weather.Failure(url, fmt.Errorf("extract: %w", err))
	}
	reading.URL = url
	return weather.Success(reading)
}

func (r *Runner) settle(outcome weather.Outcome) {
	if outcome.Succeeded() {
		metrics.ObserveTask(string(outcome.URL), metrics.StatusSuccess)
		r.logger.Debug("task succeeded",
			zap.String("url", string(outcome.URL)),
			zap.String("area", outcome.Reading.AreaName),
		)
		if r.reporter != nil {
			r.reporter.Success(*outcome.Reading)
		}
		return
	}
	metrics.ObserveTask(string(outcome.URL), metrics.StatusFailure)
	r.logger.Warn("task failed", zap.String("url", string(outcome.URL)), zap.Error(outcome.Err))
	if r.reporter != nil {
		r.reporter.Failure(outcome.URL, outcome.Err)
	}
}
