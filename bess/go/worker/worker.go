// Package worker processes jobs from the queue. Discovery jobs crawl one
// source family of a municipality and emit candidates; extraction jobs turn
// one candidate into a classified procedure linked to a project entity.
package worker

import (
	"context"
	"strings"
	"time"

	"github.com/witto13/BESS-Crawler/bess/go/config"
	"github.com/witto13/BESS-Crawler/bess/go/crawler"
	"github.com/witto13/BESS-Crawler/bess/go/fetch"
	"github.com/witto13/BESS-Crawler/bess/go/queue"
	"github.com/witto13/BESS-Crawler/bess/go/store"
	"github.com/witto13/BESS-Crawler/bess/go/textnorm"
	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/metrics2"
	"github.com/witto13/BESS-Crawler/go/skerr"
	"github.com/witto13/BESS-Crawler/go/sklog"
	"github.com/witto13/BESS-Crawler/go/util"
)

// dequeueErrorBackoff is how long the loop pauses after a broker error.
const dequeueErrorBackoff = time.Second

// Worker holds everything one job needs: the stores, the crawlers, and the
// shared HTTP client that enforces the politeness limits.
type Worker struct {
	cfg       *config.Config
	store     *store.Store
	queue     *queue.Queue
	client    *fetch.Client
	blobs     *store.BlobStore
	textCache *textnorm.TextCache

	ris       *crawler.RIS
	amtsblatt *crawler.Amtsblatt
	municipal *crawler.Municipal

	discoveryJobs  metrics2.Counter
	extractionJobs metrics2.Counter
	jobFailures    metrics2.Counter
	liveness       metrics2.Liveness
}

// New builds a Worker on shared infrastructure. All crawlers share client so
// the per-host rate limits hold across job kinds.
func New(cfg *config.Config, st *store.Store, q *queue.Queue, client *fetch.Client) *Worker {
	return &Worker{
		cfg:            cfg,
		store:          st,
		queue:          q,
		client:         client,
		blobs:          store.NewBlobStore(cfg.StorageBasePath),
		textCache:      textnorm.NewTextCache(cfg.TextCacheBase),
		ris:            crawler.NewRIS(client),
		amtsblatt:      crawler.NewAmtsblatt(client),
		municipal:      crawler.NewMunicipal(client),
		discoveryJobs:  metrics2.GetCounter("worker_discovery_jobs_total", nil),
		extractionJobs: metrics2.GetCounter("worker_extraction_jobs_total", nil),
		jobFailures:    metrics2.GetCounter("worker_job_failures_total", nil),
		liveness:       metrics2.NewLiveness("worker_job_loop", nil),
	}
}

// Run is the worker loop. It blocks until ctx is cancelled. Job failures are
// logged and counted but never stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	sklog.Infof("Worker started; queue=%s mode=%s", w.cfg.QueueName, w.cfg.CrawlMode)
	for {
		if err := ctx.Err(); err != nil {
			return skerr.Wrap(err)
		}
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			sklog.Errorf("Failed to dequeue: %s", err)
			select {
			case <-time.After(dequeueErrorBackoff):
			case <-ctx.Done():
				return skerr.Wrap(ctx.Err())
			}
			continue
		}
		if job == nil {
			// Queue was idle.
			w.liveness.Reset()
			continue
		}
		w.process(ctx, job)
		w.liveness.Reset()
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	if job.Extraction != nil {
		w.extractionJobs.Inc(1)
		if err := w.ProcessExtraction(ctx, job.Extraction); err != nil {
			w.jobFailures.Inc(1)
			sklog.Errorf("Extraction job for candidate %d failed: %s", job.Extraction.CandidateID, err)
		}
		return
	}
	if job.Discovery != nil {
		w.discoveryJobs.Inc(1)
		if err := w.ProcessDiscovery(ctx, job.Discovery); err != nil {
			w.jobFailures.Inc(1)
			sklog.Errorf("Discovery job for %s/%s failed: %s", job.Discovery.MunicipalityKey, job.Discovery.SourceType, err)
		}
		return
	}
	sklog.Warningf("Dropping empty job payload")
}

// classifyFailure maps a crawl error onto a job status and a short error
// class for the stats table.
func classifyFailure(err error) (types.JobStatus, string) {
	msg := strings.ToLower(err.Error())
	switch {
	case util.ContainsAny(msg, []string{"ssl", "certificate", "tls", "x509"}):
		return types.JobErrorSSL, "ssl"
	case util.ContainsAny(msg, []string{"timeout", "deadline", "connection", "no such host"}):
		return types.JobErrorNetwork, "network"
	default:
		return types.JobErrorOther, "other"
	}
}

func millis(d time.Duration) int64 {
	return d.Milliseconds()
}
