package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/witto13/BESS-Crawler/bess/go/crawler"
	"github.com/witto13/BESS-Crawler/bess/go/discovery"
	"github.com/witto13/BESS-Crawler/bess/go/prefilter"
	"github.com/witto13/BESS-Crawler/bess/go/store"
	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/now"
	"github.com/witto13/BESS-Crawler/go/skerr"
	"github.com/witto13/BESS-Crawler/go/sklog"
)

// ProcessDiscovery crawls one source family of a municipality, persists the
// discovered items as candidates, and enqueues extraction jobs for those
// that pass the prefilter. Crawl failures are recorded in the stats row
// rather than failing the job; an empty source is a normal outcome.
func (w *Worker) ProcessDiscovery(ctx context.Context, job *types.DiscoveryJob) error {
	start := time.Now()
	counts := types.CrawlCounts{}
	timings := types.CrawlTimings{}
	status := types.JobDone
	errorClass := ""

	officialURL, err := w.store.MunicipalityWebsite(ctx, job.MunicipalityKey)
	if err != nil {
		sklog.Warningf("Failed to load official website for %s: %s", job.MunicipalityKey, err)
	}

	fetchStart := time.Now()
	var items []crawler.Item
	var diag *discovery.Diagnostics
	switch job.SourceType {
	case types.SourceRIS:
		items, diag = w.ris.ListProcedures(ctx, job.MunicipalityName, job.EntrypointURL, officialURL)
		counts.PagesFetched = 1
	case types.SourceAmtsblatt:
		items, diag = w.listAmtsblattItems(ctx, job, officialURL, &counts)
	case types.SourceMunicipal:
		items = w.listMunicipalItems(ctx, job, officialURL, &counts)
	default:
		return skerr.Fmt("unknown source type %q", job.SourceType)
	}
	timings.FetchHTMLMs = millis(time.Since(fetchStart))
	counts.CandidatesFound = int64(len(items))

	if diag != nil {
		sklog.Infof("Discovery diagnostics for %s (%s): method=%s reason=%s attempted=%d failed=%d",
			job.MunicipalityName, job.SourceType, diag.Method, diag.ReasonCode, len(diag.AttemptedURLs), len(diag.FailedURLs))
		if diag.ReasonCode == discovery.ReasonSSLBlocked {
			status = types.JobErrorSSL
			errorClass = "ssl"
		}
	}

	dbStart := time.Now()
	enqueued, skipped := w.saveCandidates(ctx, job, items)
	timings.DBWriteMs = millis(time.Since(dbStart))
	// Procedures are only saved by extraction jobs; discovery reports
	// candidate volume.
	counts.CandidatesEnqueued = enqueued
	counts.CandidatesSkipped = skipped
	timings.TotalMs = millis(time.Since(start))

	if err := w.store.InsertCrawlStats(ctx, &types.CrawlStats{
		RunID:           job.RunID,
		MunicipalityKey: job.MunicipalityKey,
		SourceType:      job.SourceType,
		JobStatus:       status,
		Counts:          counts,
		Timings:         timings,
		ErrorClass:      errorClass,
	}); err != nil {
		return skerr.Wrap(err)
	}

	sklog.Infof("Discovery job completed for %s (%s): %d candidates, %d enqueued, %d skipped, status=%s",
		job.MunicipalityName, job.SourceType, counts.CandidatesFound, enqueued, skipped, status)

	w.logMunicipalitySummary(ctx, job)

	if err := w.store.TouchMunicipalityCrawled(ctx, job.MunicipalityKey, now.Now(ctx)); err != nil {
		sklog.Warningf("Failed to stamp last crawl for %s: %s", job.MunicipalityKey, err)
	}
	return nil
}

// listAmtsblattItems finds the gazette archive, then walks its issues and
// collects the announcement items of each.
func (w *Worker) listAmtsblattItems(ctx context.Context, job *types.DiscoveryJob, officialURL string, counts *types.CrawlCounts) ([]crawler.Item, *discovery.Diagnostics) {
	amtsblattURL, diag := w.amtsblatt.Discover(ctx, job.MunicipalityName, job.EntrypointURL, officialURL)
	if amtsblattURL == "" {
		return nil, diag
	}
	issues := w.amtsblatt.ListIssues(ctx, amtsblattURL)
	counts.PagesFetched = int64(len(issues))
	items := []crawler.Item{}
	for _, issue := range issues {
		items = append(items, w.amtsblatt.ExtractIssueProcedures(ctx, issue.URL)...)
	}
	return items, diag
}

// listMunicipalItems spiders the municipal website's planning sections.
func (w *Worker) listMunicipalItems(ctx context.Context, job *types.DiscoveryJob, officialURL string, counts *types.CrawlCounts) []crawler.Item {
	base := job.EntrypointURL
	if base == "" {
		base = officialURL
	}
	if base == "" {
		base = "https://www." + discovery.SanitizeName(job.MunicipalityName) + ".de"
	}
	items := []crawler.Item{}
	for _, sectionURL := range w.municipal.DiscoverSections(ctx, base) {
		items = append(items, w.municipal.CrawlSection(ctx, sectionURL)...)
		counts.PagesFetched++
	}
	return items
}

// saveCandidates persists items and enqueues extraction jobs for those the
// prefilter lets through. Per-candidate failures are logged and skipped.
func (w *Worker) saveCandidates(ctx context.Context, job *types.DiscoveryJob, items []crawler.Item) (int64, int64) {
	var enqueued, skipped int64
	for _, item := range items {
		score := prefilter.Score(item.Title, item.URL, "")
		id, err := w.store.InsertCandidate(ctx, &types.Candidate{
			RunID:           job.RunID,
			MunicipalityKey: job.MunicipalityKey,
			SourceType:      job.SourceType,
			URL:             item.URL,
			Title:           item.Title,
			DetectedAt:      now.Now(ctx),
			PrefilterScore:  score,
			Status:          types.CandidateNew,
		})
		if err != nil {
			sklog.Warningf("Failed to save candidate %s: %s", item.URL, err)
			continue
		}
		if prefilter.ShouldExtract(score, job.SourceType, w.cfg.Mode()) {
			if err := w.queue.EnqueueExtraction(ctx, &types.ExtractionJob{
				RunID:           job.RunID,
				CandidateID:     id,
				MunicipalityKey: job.MunicipalityKey,
			}); err != nil {
				sklog.Warningf("Failed to enqueue candidate %d: %s", id, err)
				continue
			}
			if err := w.store.UpdateCandidateStatus(ctx, id, types.CandidateEnqueued, ""); err != nil {
				sklog.Warningf("Failed to mark candidate %d enqueued: %s", id, err)
			}
			enqueued++
		} else {
			reason := fmt.Sprintf("prefilter_score %.2f below threshold", score)
			if err := w.store.UpdateCandidateStatus(ctx, id, types.CandidateSkipped, reason); err != nil {
				sklog.Warningf("Failed to mark candidate %d skipped: %s", id, err)
			}
			skipped++
		}
	}
	return enqueued, skipped
}

// logMunicipalitySummary emits the one-line per-municipality digest across
// all sources of the current run. Best effort.
func (w *Worker) logMunicipalitySummary(ctx context.Context, job *types.DiscoveryJob) {
	summaries, err := w.store.RunSourceSummaries(ctx, job.MunicipalityKey, job.RunID)
	if err != nil {
		sklog.Debugf("Failed to load summary for %s: %s", job.MunicipalityKey, err)
		return
	}
	if line := summaryLine(job.MunicipalityName, job.MunicipalityKey, summaries); line != "" {
		sklog.Infof("%s", line)
	}
}

// summaryLine formats the per-municipality digest, or "" until all three
// source families of the run have reported. The procedure total comes from
// the extraction stats rows of the same run.
func summaryLine(name, key string, summaries []store.SourceSummary) string {
	bySource := map[types.SourceType]string{}
	var total int64
	for _, s := range summaries {
		bySource[s.SourceType] = string(s.JobStatus)
		total += s.ProceduresSaved
	}
	for _, st := range types.AllSourceTypes {
		if _, ok := bySource[st]; !ok {
			return ""
		}
	}
	return fmt.Sprintf("MUNICIPALITY_SUMMARY: %s (%s) | RIS=%s | Amtsblatt=%s | Municipal=%s | Procedures=%d",
		name, key,
		bySource[types.SourceRIS], bySource[types.SourceAmtsblatt], bySource[types.SourceMunicipal], total)
}
