// Package harvest drives one crawl over the configured provinces.
package harvest

import (
	"context"
	"errors"
	"iter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/realtime-weather-crawler/internal/crawler"
	"github.com/JakeFAU/realtime-weather-crawler/internal/metrics"
	"github.com/JakeFAU/realtime-weather-crawler/internal/report"
	"github.com/JakeFAU/realtime-weather-crawler/internal/weather"
)

// Lister discovers detail URLs for one province.
type Lister interface {
	ListDetailURLs(ctx context.Context, id weather.ProvinceID) (iter.Seq2[weather.DetailURL, error], error)
}

// Runner processes one detail URL to a terminal outcome.
type Runner interface {
	Run(ctx context.Context, url weather.DetailURL) weather.Outcome
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Coordinator walks provinces in order and fans detail URLs out to tasks.
type Coordinator struct {
	lister   Lister
	runner   Runner
	reporter report.Reporter
	ids      IDGenerator
	logger   *zap.Logger
}

// New constructs a Coordinator. ids and logger may be nil.
func New(lister Lister, runner Runner, reporter report.Reporter, ids IDGenerator, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		lister:   lister,
		runner:   runner,
		reporter: reporter,
		ids:      ids,
		logger:   logger,
	}
}

// handle holds the outcome of one dispatched task. Each task writes only its
// own handle; the coordinator reads them after the join.
type handle struct {
	outcome weather.Outcome
}

// Harvest crawls provinces sequentially, dispatching every discovered URL as
// its own task, then waits for all tasks to settle and writes the completion
// marker. A failing province or task never stops the run. The only error
// returned is ctx's, after all dispatched tasks have settled.
func (c *Coordinator) Harvest(ctx context.Context, provinces []weather.ProvinceID) (weather.Summary, error) {
	start := time.Now()
	summary := weather.Summary{RunID: c.newRunID()}
	logger := c.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("harvest started", zap.Int("provinces", len(provinces)))

	var (
		group   errgroup.Group
		handles []*handle
		seen    = make(map[weather.DetailURL]struct{})
	)

	for _, province := range provinces {
		if ctx.Err() != nil {
			break
		}
		summary.Provinces++
		plog := logger.With(zap.String("province", string(province)))

		urls, err := c.lister.ListDetailURLs(ctx, province)
		if err != nil {
			summary.ProvincesFailed++
			metrics.ObserveProvince(metrics.StatusFailure)
			plog.Error("province listing failed", zap.Error(err))
			continue
		}
		metrics.ObserveProvince(metrics.StatusSuccess)

		dispatched := 0
		for url, err := range urls {
			if err != nil {
				plog.Error("listing link defect", zap.Error(err))
				continue
			}
			if _, dup := seen[url]; dup {
				summary.Duplicates++
				plog.Debug("duplicate detail url skipped", zap.String("url", string(url)))
				continue
			}
			seen[url] = struct{}{}

			h := &handle{}
			handles = append(handles, h)
			group.Go(func() error {
				h.outcome = c.runner.Run(ctx, url)
				return nil
			})
			dispatched++
		}
		summary.Dispatched += dispatched
		plog.Info("province dispatched", zap.Int("tasks", dispatched))
	}

	// Tasks report their own failures; Wait only joins.
	_ = group.Wait()

	for _, h := range handles {
		if h.outcome.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	summary.Elapsed = time.Since(start)

	if c.reporter != nil {
		c.reporter.Done()
	}
	logger.Info("harvest finished",
		zap.Int("dispatched", summary.Dispatched),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("provinces_failed", summary.ProvincesFailed),
		zap.Duration("elapsed", summary.Elapsed),
	)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (c *Coordinator) newRunID() string {
	if c.ids == nil {
		return ""
	}
	id, err := c.ids.NewID()
	if err != nil {
		c.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

// ErrNoProvinces is returned by Validate for an empty province list.
var ErrNoProvinces = errors.New("no provinces configured")

// Validate checks a province list before any network activity.
func Validate(provinces []weather.ProvinceID) error {
	if len(provinces) == 0 {
		return ErrNoProvinces
	}
	for _, p := range provinces {
		if p == "" {
			return errors.New("empty province id")
		}
	}
	return nil
}

var _ Lister = (*crawler.ProvinceCrawler)(nil)
