package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-weather-crawler/internal/api"
	"github.com/JakeFAU/realtime-weather-crawler/internal/config"
	"github.com/JakeFAU/realtime-weather-crawler/internal/crawler"
	"github.com/JakeFAU/realtime-weather-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/realtime-weather-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/realtime-weather-crawler/internal/harvest"
	"github.com/JakeFAU/realtime-weather-crawler/internal/id/uuid"
	"github.com/JakeFAU/realtime-weather-crawler/internal/logging"
	"github.com/JakeFAU/realtime-weather-crawler/internal/metrics"
	"github.com/JakeFAU/realtime-weather-crawler/internal/permit"
	"github.com/JakeFAU/realtime-weather-crawler/internal/politeness"
	"github.com/JakeFAU/realtime-weather-crawler/internal/report"
	"github.com/JakeFAU/realtime-weather-crawler/internal/task"
	"github.com/JakeFAU/realtime-weather-crawler/internal/weather"
)

// newHarvestCmd creates the 'harvest' subcommand, which performs one pass
// over the configured provinces and exits.
func newHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Runs one harvesting pass",
		Long: `Crawls every configured province in order and fetches each discovered
city page under the permit pool. Prints "<area> <temperature>" per city to
stdout, "Task failed: <url> <cause>" per failure to stderr, and "Done" once
every task has settled.`,
		Args: cobra.NoArgs,
		RunE: runHarvestCommand,
	}

	flags := cmd.Flags()
	flags.Int("max-concurrent", 5, "maximum in-flight detail fetches")
	flags.Duration("delay", 0, "pause held under the permit before each fetch (default 2s)")
	flags.StringSlice("province", nil, "province id to harvest; repeatable (default all)")
	flags.Duration("timeout", 0, "per-fetch timeout (default 15s)")
	flags.String("user-agent", "", "override the User-Agent header")
	flags.String("metrics-addr", "", "serve /metrics and /healthz on this address")
	flags.String("log-level", "", "zap log level")
	flags.Bool("dev", false, "use the development logger")

	return cmd
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("read --config: %w", err)
	}
	cfg, err := config.Load(cfgPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := runHarvest(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("harvest interrupted",
				zap.Int("succeeded", summary.Succeeded),
				zap.Int("failed", summary.Failed),
			)
			return nil
		}
		return err
	}
	return nil
}

// pipeline is the wired set of components for one pass.
type pipeline struct {
	pool        *permit.Pool
	coordinator *harvest.Coordinator
}

// buildPipeline constructs every component from cfg. Selector errors surface
// here, before any network activity.
func buildPipeline(cfg config.Config, logger *zap.Logger, out, errOut io.Writer) (pipeline, error) {
	extractor, err := extract.New(cfg.Selectors.AreaName, cfg.Selectors.Temperature)
	if err != nil {
		return pipeline{}, err
	}
	pool, err := permit.New(cfg.Harvest.MaxConcurrent)
	if err != nil {
		return pipeline{}, err
	}
	fetch := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.HTTP.Timeout,
	})
	provinceCrawler, err := crawler.NewProvinceCrawler(crawler.Config{
		ListingURLTemplate:  cfg.Harvest.ListingURLTemplate,
		HotCityLinkSelector: cfg.Selectors.HotCityLink,
	}, fetch, logger.Named("crawler"))
	if err != nil {
		return pipeline{}, err
	}
	throttle := politeness.New(politeness.Config{
		Delay:        cfg.Harvest.Delay,
		PerHostRPS:   cfg.Crawler.PerHostRPS,
		PerHostBurst: cfg.Crawler.PerHostBurst,
	})
	reporter := report.NewWriter(out, errOut)
	runner := task.NewRunner(pool, throttle, fetch, extractor, reporter, logger.Named("task"))
	coordinator := harvest.New(provinceCrawler, runner, reporter, uuid.New(), logger.Named("harvest"))

	return pipeline{pool: pool, coordinator: coordinator}, nil
}

func runHarvest(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
	out, errOut io.Writer,
) (weather.Summary, error) {
	provinces := make([]weather.ProvinceID, 0, len(cfg.Harvest.Provinces))
	for _, p := range cfg.Harvest.Provinces {
		provinces = append(provinces, weather.ProvinceID(p))
	}
	if err := harvest.Validate(provinces); err != nil {
		return weather.Summary{}, err
	}

	p, err := buildPipeline(cfg, logger, out, errOut)
	if err != nil {
		return weather.Summary{}, err
	}

	metrics.Init()
	var serverDone <-chan error
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	if cfg.Metrics.Addr != "" {
		srv := api.NewServer(p.pool, logger.Named("api"))
		serverDone, err = srv.Serve(serverCtx, cfg.Metrics.Addr)
		if err != nil {
			return weather.Summary{}, err
		}
	}

	summary, err := p.coordinator.Harvest(ctx, provinces)

	stopServer()
	if serverDone != nil {
		if serr := <-serverDone; serr != nil {
			logger.Warn("metrics server error", zap.Error(serr))
		}
	}

	logger.Info("harvest summary",
		zap.String("run_id", summary.RunID),
		zap.Int("provinces", summary.Provinces),
		zap.Int("provinces_failed", summary.ProvincesFailed),
		zap.Int("dispatched", summary.Dispatched),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("peak_permits", p.pool.Peak()),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, err
}
