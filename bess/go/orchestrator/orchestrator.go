// Package orchestrator schedules discovery jobs. Every cycle it picks the
// municipalities most overdue for a crawl and enqueues one discovery job per
// source family for each.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/witto13/BESS-Crawler/bess/go/discovery"
	"github.com/witto13/BESS-Crawler/bess/go/queue"
	"github.com/witto13/BESS-Crawler/bess/go/store"
	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/metrics2"
	"github.com/witto13/BESS-Crawler/go/skerr"
	"github.com/witto13/BESS-Crawler/go/sklog"
	"github.com/witto13/BESS-Crawler/go/timer"
)

const (
	// DefaultCheckInterval is how often the scheduler looks for due
	// municipalities.
	DefaultCheckInterval = time.Minute

	// DefaultBatchSize is how many municipalities are enqueued per cycle.
	DefaultBatchSize = 10

	// DefaultRescanInterval is how long a municipality stays fresh after a
	// crawl.
	DefaultRescanInterval = 7 * 24 * time.Hour
)

// Orchestrator drives the scheduling loop.
type Orchestrator struct {
	store *store.Store
	queue *queue.Queue

	checkInterval  time.Duration
	batchSize      int
	rescanInterval time.Duration

	jobsEnqueued metrics2.Counter
	cycles       metrics2.Counter
	liveness     metrics2.Liveness
}

// New returns an Orchestrator. Zero pacing values fall back to the
// defaults.
func New(st *store.Store, q *queue.Queue, checkInterval, rescanInterval time.Duration, batchSize int) *Orchestrator {
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}
	if rescanInterval <= 0 {
		rescanInterval = DefaultRescanInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Orchestrator{
		store:          st,
		queue:          q,
		checkInterval:  checkInterval,
		batchSize:      batchSize,
		rescanInterval: rescanInterval,
		jobsEnqueued:   metrics2.GetCounter("orchestrator_jobs_enqueued_total", nil),
		cycles:         metrics2.GetCounter("orchestrator_cycles_total", nil),
		liveness:       metrics2.NewLiveness("orchestrator_cycle", nil),
	}
}

// Cycle runs one scheduling pass and returns how many jobs it enqueued.
func (o *Orchestrator) Cycle(ctx context.Context) (int, error) {
	defer timer.New("orchestrator cycle").Stop()
	o.cycles.Inc(1)
	due, err := o.store.DueMunicipalities(ctx, o.rescanInterval, o.batchSize)
	if err != nil {
		return 0, skerr.Wrap(err)
	}
	if len(due) == 0 {
		sklog.Infof("No municipalities due for crawling")
		return 0, nil
	}
	sklog.Infof("Found %d municipalities to crawl", len(due))

	runID := uuid.New().String()
	total := 0
	for _, m := range due {
		n, err := o.enqueueMunicipality(ctx, runID, m)
		total += n
		if err != nil {
			sklog.Warningf("Partial enqueue for %s: %s", m.Name, err)
		}
		sklog.Infof("Queued %d discovery job(s) for %s (key: %s)", n, m.Name, m.Key)
	}
	o.jobsEnqueued.Inc(int64(total))
	sklog.Infof("Cycle complete: enqueued %d jobs for %d municipalities (run %s)", total, len(due), runID)
	return total, nil
}

// enqueueMunicipality pushes one discovery job per source family. A failed
// enqueue of one source never blocks the others; the failures are collected
// and returned alongside the count.
func (o *Orchestrator) enqueueMunicipality(ctx context.Context, runID string, m *types.Municipality) (int, error) {
	enqueued := 0
	var rvErr error
	for _, sourceType := range types.AllSourceTypes {
		job := &types.DiscoveryJob{
			RunID:            runID,
			MunicipalityKey:  m.Key,
			MunicipalityName: m.Name,
			SourceType:       sourceType,
			EntrypointURL:    entrypointFor(sourceType, m),
		}
		if err := o.queue.EnqueueDiscovery(ctx, job); err != nil {
			rvErr = multierror.Append(rvErr, skerr.Wrapf(err, "enqueueing %s job", sourceType))
			continue
		}
		enqueued++
	}
	return enqueued, rvErr
}

// entrypointFor picks the seed URL for a source family. RIS and Amtsblatt
// may be empty; the worker's discovery probes take over. The municipal
// website falls back to the conventional www.<name>.de pattern.
func entrypointFor(sourceType types.SourceType, m *types.Municipality) string {
	switch sourceType {
	case types.SourceRIS:
		return m.RISURL
	case types.SourceAmtsblatt:
		return m.AmtsblattURL
	case types.SourceMunicipal:
		if m.OfficialWebsite != "" {
			return m.OfficialWebsite
		}
		if name := discovery.SanitizeName(m.Name); name != "" {
			return "https://www." + name + ".de"
		}
		return ""
	default:
		return ""
	}
}

// Run loops Cycle until ctx is cancelled. Cycle errors are logged and the
// loop continues on the next tick.
func (o *Orchestrator) Run(ctx context.Context) {
	sklog.Infof("Orchestrator starting: interval=%s batch=%d rescan=%s", o.checkInterval, o.batchSize, o.rescanInterval)
	ticker := time.NewTicker(o.checkInterval)
	defer ticker.Stop()
	for {
		if _, err := o.Cycle(ctx); err != nil {
			sklog.Errorf("Orchestrator cycle failed: %s", err)
		} else {
			o.liveness.Reset()
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			sklog.Infof("Orchestrator shutting down")
			return
		}
	}
}
