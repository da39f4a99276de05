// bess_orchestrator schedules discovery jobs for due municipalities.
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
	"github.com/witto13/BESS-Crawler/bess/go/orchestrator"
	"github.com/witto13/BESS-Crawler/bess/go/queue"
	"github.com/witto13/BESS-Crawler/bess/go/store"
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
	var checkIntervalSecs, rescanIntervalDays, batchSize int

	app := &cli.App{
		Name:  "bess_orchestrator",
		Usage: "Enqueues discovery jobs for municipalities due for a crawl.",
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
				Usage:       "Name of the Redis list to push jobs onto.",
				Value:       cfg.QueueName,
				Destination: &cfg.QueueName,
			},
			&cli.StringFlag{
				Name:        "port",
				Usage:       "Address to serve /healthz and /metrics on.",
				Value:       ":8001",
				Destination: &port,
			},
			&cli.IntFlag{
				Name:        "check_interval_seconds",
				Usage:       "How often to look for due municipalities.",
				Value:       int(orchestrator.DefaultCheckInterval / time.Second),
				Destination: &checkIntervalSecs,
			},
			&cli.IntFlag{
				Name:        "rescan_interval_days",
				Usage:       "How long a municipality stays fresh after a crawl.",
				Value:       int(orchestrator.DefaultRescanInterval / (24 * time.Hour)),
				Destination: &rescanIntervalDays,
			},
			&cli.IntFlag{
				Name:        "batch_size",
				Usage:       "How many municipalities to enqueue per cycle.",
				Value:       orchestrator.DefaultBatchSize,
				Destination: &batchSize,
			},
		},
		Action: func(c *cli.Context) error {
			return run(cfg, port, time.Duration(checkIntervalSecs)*time.Second, time.Duration(rescanIntervalDays)*24*time.Hour, batchSize)
		},
	}
	if err := app.Run(os.Args); err != nil {
		sklog.Fatal(err)
	}
}

func run(cfg *config.Config, port string, checkInterval, rescanInterval time.Duration, batchSize int) error {
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return skerr.Wrap(err)
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

	o := orchestrator.New(st, q, checkInterval, rescanInterval, batchSize)
	go o.Run(ctx)

	cleanup.WaitForInterrupt()
	cancel()
	return nil
}
