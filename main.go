package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/xerrors"

	"webquery/query_engine"
)

var appName = "webquery-crawler"

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	logger := rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"host": host,
	})

	if err := makeApp(rootLogger, logger).Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to error")
		_ = os.Stderr.Sync()
		os.Exit(1)
	}
}

func makeApp(rootLogger *logrus.Logger, logger *logrus.Entry) *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = "crawl linked HTML documents into a queryable web index"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			EnvVar: "CRAWLER_CONFIG",
			Usage:  "Path to a YAML configuration file",
		},
		cli.StringSliceFlag{
			Name:  "seed",
			Usage: "Seed URL or local HTML file (repeatable, overrides config)",
		},
		cli.IntFlag{
			Name:   "workers",
			EnvVar: "CRAWLER_WORKERS",
			Usage:  "Number of crawler workers",
		},
		cli.DurationFlag{
			Name:   "delay",
			EnvVar: "CRAWLER_DELAY",
			Usage:  "Politeness delay between requests",
		},
		cli.Int64Flag{
			Name:   "max-pages",
			EnvVar: "CRAWLER_MAX_PAGES",
			Usage:  "Stop after this many pages",
		},
		cli.StringFlag{
			Name:   "output",
			EnvVar: "CRAWLER_OUTPUT",
			Usage:  "Index snapshot path (.json, or .db/.sqlite for SQLite)",
		},
		cli.StringFlag{
			Name:   "log-level",
			EnvVar: "LOG_LEVEL",
			Usage:  "One of debug, info, warn, error",
		},
	}
	app.Action = func(appCtx *cli.Context) error {
		return runMain(appCtx, rootLogger, logger)
	}
	return app
}

func runMain(appCtx *cli.Context, rootLogger *logrus.Logger, logger *logrus.Entry) error {
	cfg, err := buildConfig(appCtx)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return xerrors.Errorf("configuration validation failed: %w", err)
	}

	if cfg.Logging.JSON {
		rootLogger.SetFormatter(new(logrus.JSONFormatter))
	}
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return xerrors.Errorf("invalid log level: %w", err)
	}
	rootLogger.SetLevel(level)

	logger = logger.WithField("crawl_id", uuid.New().String())
	logger.WithField("config", cfg.String()).Info("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	idx := query_engine.NewWebIndex()
	indexer := NewIndexer(idx, NewTextProcessor(cfg.Crawler.FollowExtensions), cfg.Output, logger)
	crawler := NewMultithreadedCrawler(cfg.Crawler, indexer, clock.WallClock, logger)

	stats, err := crawler.Crawl(ctx, cfg.Crawler.Seeds)
	if err != nil {
		return err
	}

	// Final index save
	if err := indexer.SaveIndex(); err != nil {
		return xerrors.Errorf("failed to save index: %w", err)
	}

	indexStats := indexer.GetStats()
	logger.WithFields(logrus.Fields{
		"pages_crawled":   stats.PagesCrawled,
		"total_documents": indexStats["total_documents"],
		"total_terms":     indexStats["total_terms"],
		"output":          cfg.Output.Path,
	}).Info("crawl finished")

	return nil
}

// buildConfig merges the optional config file with command-line overrides
func buildConfig(appCtx *cli.Context) (*Config, error) {
	cfg := DefaultConfig()
	if path := appCtx.String("config"); path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, xerrors.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if seeds := appCtx.StringSlice("seed"); len(seeds) > 0 {
		cfg.Crawler.Seeds = seeds
	}
	if appCtx.IsSet("workers") {
		cfg.Crawler.Workers = appCtx.Int("workers")
	}
	if appCtx.IsSet("delay") {
		cfg.Crawler.DelayMs = int(appCtx.Duration("delay").Milliseconds())
	}
	if appCtx.IsSet("max-pages") {
		cfg.Crawler.MaxPages = appCtx.Int64("max-pages")
	}
	if appCtx.IsSet("output") {
		cfg.Output.Path = appCtx.String("output")
		cfg.Output.Format = ""
	}
	if appCtx.IsSet("log-level") {
		cfg.Logging.Level = appCtx.String("log-level")
	}
	cfg.ApplyDefaults()

	for i, seed := range cfg.Crawler.Seeds {
		cfg.Crawler.Seeds[i] = seedURL(seed)
	}

	return cfg, nil
}

// seedURL turns an existing local path into a file:// URL and leaves
// everything else untouched
func seedURL(seed string) string {
	if _, err := os.Stat(seed); err != nil {
		return seed
	}
	abs, err := filepath.Abs(seed)
	if err != nil {
		return seed
	}
	return "file://" + filepath.ToSlash(abs)
}
