// bess_worker consumes discovery and extraction jobs from the queue.
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/witto13/BESS-Crawler/bess/go/config"
	"github.com/witto13/BESS-Crawler/bess/go/fetch"
	"github.com/witto13/BESS-Crawler/bess/go/queue"
	"github.com/witto13/BESS-Crawler/bess/go/store"
	"github.com/witto13/BESS-Crawler/bess/go/worker"
	"github.com/witto13/BESS-Crawler/go/cleanup"
	"github.com/witto13/BESS-Crawler/go/httputils"
	"github.com/witto13/BESS-Crawler/go/skerr"
	"github.com/witto13/BESS-Crawler/go/sklog"
	"github.com/witto13/BESS-Crawler/go/sklog/sklogimpl"
	"github.com/witto13/BESS-Crawler/go/sklog/stdlogging"
)

func main() {
	sklogimpl.SetLogger(stdlogging.New(os.Stdout))

	cfg := config.New()
	var port string
	var parallelism int

	app := &cli.App{
		Name:  "bess_worker",
		Usage: "Processes discovery and extraction jobs for municipal battery storage procedures.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "postgres_dsn",
				Usage:       "Connection string for the results database.",
				EnvVars:     []string{"POSTGRES_DSN"},
				Destination: &cfg.PostgresDSN,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "redis_url",
				Usage:       "URL of the Redis job queue.",
				EnvVars:     []string{"REDIS_URL"},
				Destination: &cfg.RedisURL,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "queue",
				Usage:       "Name of the Redis list to consume.",
				Value:       cfg.QueueName,
				Destination: &cfg.QueueName,
			},
			&cli.StringFlag{
				Name:        "mode",
				Usage:       "Crawl mode, \"fast\" or \"deep\".",
				EnvVars:     []string{"CRAWL_MODE"},
				Value:       cfg.CrawlMode,
				Destination: &cfg.CrawlMode,
			},
			&cli.IntFlag{
				Name:        "global_concurrency",
				Usage:       "Max in-flight HTTP requests across all hosts.",
				Value:       cfg.GlobalConcurrency,
				Destination: &cfg.GlobalConcurrency,
			},
			&cli.IntFlag{
				Name:        "per_domain_concurrency",
				Usage:       "Max in-flight HTTP requests per host.",
				Value:       cfg.PerDomainConcurrency,
				Destination: &cfg.PerDomainConcurrency,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "Per-request HTTP timeout.",
				Value:       cfg.Timeout,
				Destination: &cfg.Timeout,
			},
			&cli.IntFlag{
				Name:        "retries",
				Usage:       "Fetch retry budget per URL.",
				Value:       cfg.Retries,
				Destination: &cfg.Retries,
			},
			&cli.IntFlag{
				Name:        "pdf_max_size_mb",
				Usage:       "Skip PDFs larger than this in fast mode.",
				Value:       cfg.PDFMaxSizeMB,
				Destination: &cfg.PDFMaxSizeMB,
			},
			&cli.StringFlag{
				Name:        "storage_path",
				Usage:       "Directory for content-addressed document storage.",
				Value:       cfg.StorageBasePath,
				Destination: &cfg.StorageBasePath,
			},
			&cli.StringFlag{
				Name:        "page_cache_path",
				Usage:       "Directory for the on-disk HTTP page cache.",
				Value:       cfg.PageCacheBase,
				Destination: &cfg.PageCacheBase,
			},
			&cli.StringFlag{
				Name:        "text_cache_path",
				Usage:       "Directory for the extracted-PDF-text cache.",
				Value:       cfg.TextCacheBase,
				Destination: &cfg.TextCacheBase,
			},
			&cli.IntFlag{
				Name:        "parallelism",
				Usage:       "Number of concurrent job processors.",
				Value:       4,
				Destination: &parallelism,
			},
			&cli.StringFlag{
				Name:        "port",
				Usage:       "Address to serve /healthz and /metrics on.",
				Value:       ":8000",
				Destination: &port,
			},
		},
		Action: func(c *cli.Context) error {
			return run(cfg, port, parallelism)
		},
	}
	if err := app.Run(os.Args); err != nil {
		sklog.Fatal(err)
	}
}

func run(cfg *config.Config, port string, parallelism int) error {
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return skerr.Wrap(err)
	}
	if parallelism < 1 {
		return skerr.Fmt("parallelism must be at least 1, got %d", parallelism)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return skerr.Wrap(err)
	}
	defer st.Close()
	q, err := queue.New(ctx, cfg.RedisURL, cfg.QueueName)
	if err != nil {
		return skerr.Wrap(err)
	}
	defer func() {
		if err := q.Close(); err != nil {
			sklog.Warningf("Failed to close queue: %s", err)
		}
	}()

	client := fetch.New(cfg)
	w := worker.New(cfg, st, q, client)

	r := chi.NewRouter()
	r.Get("/healthz", httputils.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())
	go func() {
		sklog.Infof("Serving health and metrics on %s", port)
		server := &http.Server{
			Addr:        port,
			Handler:     r,
			ReadTimeout: time.Minute,
		}
		sklog.Fatal(server.ListenAndServe())
	}()

	for i := 0; i < parallelism; i++ {
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				sklog.Errorf("Worker loop exited: %s", err)
			}
		}()
	}

	cleanup.WaitForInterrupt()
	cancel()
	return nil
}
