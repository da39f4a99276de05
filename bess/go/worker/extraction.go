package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/witto13/BESS-Crawler/bess/go/classify"
	"github.com/witto13/BESS-Crawler/bess/go/extract"
	"github.com/witto13/BESS-Crawler/bess/go/fetch"
	"github.com/witto13/BESS-Crawler/bess/go/gate"
	"github.com/witto13/BESS-Crawler/bess/go/prefilter"
	"github.com/witto13/BESS-Crawler/bess/go/store"
	"github.com/witto13/BESS-Crawler/bess/go/textnorm"
	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/now"
	"github.com/witto13/BESS-Crawler/go/skerr"
	"github.com/witto13/BESS-Crawler/go/sklog"
	"github.com/witto13/BESS-Crawler/go/util"
)

const (
	// maxDocumentsPerCandidate caps how many attachments one candidate may
	// pull in.
	maxDocumentsPerCandidate = 5

	pdfPrefixPagesFast = 3
	pdfPrefixPagesDeep = 5

	// largePDFScoreFloor: in fast mode, oversized PDFs are only downloaded
	// for candidates at or above this prefilter score.
	largePDFScoreFloor = 0.8

	// evidenceConfidenceFloor: in fast mode, evidence snippets are only
	// stored at or above this confidence.
	evidenceConfidenceFloor = 0.7
)

// privilegedAgendaTerms mark RIS agenda items whose attachments are worth
// fetching even when the listing carried no document links.
var privilegedAgendaTerms = []string{
	"einvernehmen",
	"bauantrag",
	"bauvorbescheid",
	"vorbescheid",
	"stellungnahme",
	"energie",
	"speicher",
	"photovoltaik",
	"umspannwerk",
}

// ProcessExtraction fetches one candidate's page and attachments, extracts
// text, classifies it, and persists the resulting procedure with its project
// link. Gate rejections mark the candidate SKIPPED; hard failures mark it
// ERROR.
func (w *Worker) ProcessExtraction(ctx context.Context, job *types.ExtractionJob) error {
	start := time.Now()
	counts := types.CrawlCounts{}
	timings := types.CrawlTimings{}

	cand, err := w.store.GetCandidate(ctx, job.CandidateID)
	if err != nil {
		if strings.Contains(err.Error(), pgx.ErrNoRows.Error()) {
			sklog.Warningf("Candidate %d not found", job.CandidateID)
			return nil
		}
		return skerr.Wrap(err)
	}
	// The queue delivers at least once; a candidate already in a terminal
	// DONE state was fully persisted by an earlier delivery.
	if cand.Status == types.CandidateDone {
		sklog.Infof("Candidate %d already done, dropping re-delivery", cand.ID)
		return nil
	}

	res, err := w.extractCandidate(ctx, cand, &counts, &timings)
	if err != nil {
		if statusErr := w.store.UpdateCandidateStatus(ctx, cand.ID, types.CandidateError, util.Trunc(err.Error(), 200)); statusErr != nil {
			sklog.Warningf("Failed to mark candidate %d errored: %s", cand.ID, statusErr)
		}
		status, class := classifyFailure(err)
		timings.TotalMs = millis(time.Since(start))
		w.writeExtractionStats(ctx, job, status, counts, timings, class)
		return skerr.Wrapf(err, "extracting candidate %d", cand.ID)
	}

	dbStart := time.Now()
	if res != nil {
		// The save also flips the candidate to DONE inside the same
		// transaction.
		if err := w.store.SaveExtractionResult(ctx, res); err != nil {
			if statusErr := w.store.UpdateCandidateStatus(ctx, cand.ID, types.CandidateError, util.Trunc(err.Error(), 200)); statusErr != nil {
				sklog.Warningf("Failed to mark candidate %d errored: %s", cand.ID, statusErr)
			}
			timings.TotalMs = millis(time.Since(start))
			w.writeExtractionStats(ctx, job, types.JobErrorOther, counts, timings, "other")
			return skerr.Wrapf(err, "saving extraction result for candidate %d", cand.ID)
		}
		counts.ProceduresSaved = 1
	} else {
		counts.ProceduresSkipped = 1
	}
	timings.DBWriteMs = millis(time.Since(dbStart))
	timings.TotalMs = millis(time.Since(start))

	w.writeExtractionStats(ctx, job, types.JobDone, counts, timings, "")
	sklog.Debugf("Extraction completed for candidate %d: %d PDFs, %d ms", cand.ID, counts.PDFsDownloaded, timings.TotalMs)
	return nil
}

// extractCandidate does the fetch-extract-classify-link pipeline. A nil
// result with nil error means the container gate rejected the page; the
// rejection is already persisted.
func (w *Worker) extractCandidate(ctx context.Context, cand *types.Candidate, counts *types.CrawlCounts, timings *types.CrawlTimings) (*store.ExtractionResult, error) {
	fetchStart := time.Now()
	var resp *fetch.Response
	var err error
	if cand.SourceType == types.SourceRIS {
		resp, err = w.client.GetRIS(ctx, cand.URL)
	} else {
		resp, err = w.client.Get(ctx, cand.URL)
	}
	timings.FetchHTMLMs = millis(time.Since(fetchStart))
	if err != nil {
		return nil, skerr.Wrapf(err, "fetching %s", cand.URL)
	}

	pageSHA := ""
	htmlText := ""
	docURLs := []string{}
	if isPDFURL(cand.URL) {
		docURLs = append(docURLs, cand.URL)
	} else if resp.StatusCode == http.StatusOK {
		counts.PagesFetched = 1
		pageSHA = fetch.SHA256(resp.Body)
		if text, err := textnorm.HTMLToText(string(resp.Body)); err == nil {
			htmlText = text
		}
		docURLs = documentURLs(resp.Body, cand.URL)
	}

	// RIS agenda items often list attachments only on the detail page.
	if len(docURLs) == 0 && cand.SourceType == types.SourceRIS && util.ContainsAny(strings.ToLower(cand.Title), privilegedAgendaTerms) {
		if item, err := w.ris.FetchAgendaItem(ctx, cand.URL); err == nil {
			for _, doc := range item.Documents {
				docURLs = append(docURLs, doc.URL)
			}
		} else {
			sklog.Warningf("Failed to fetch agenda item %s: %s", cand.URL, err)
		}
	}

	// Municipal anchor text makes a poor title; when the section listing
	// also gave no attachments, re-read the page as a procedure page for its
	// heading and document links. The page cache makes this cheap.
	if len(docURLs) == 0 && cand.SourceType == types.SourceMunicipal && !isPDFURL(cand.URL) {
		if page, err := w.municipal.FetchProcedurePage(ctx, cand.URL); err == nil {
			if page.Title != "" {
				cand.Title = page.Title
			}
			for _, doc := range page.Documents {
				docURLs = append(docURLs, doc.URL)
			}
		} else {
			sklog.Warningf("Failed to fetch procedure page %s: %s", cand.URL, err)
		}
	}

	allText := cand.Title + " " + htmlText
	docs := []*types.Document{}
	for _, docURL := range util.AtMost(docURLs, maxDocumentsPerCandidate) {
		doc, text := w.fetchDocument(ctx, docURL, cand.PrefilterScore, counts, timings)
		if doc == nil {
			continue
		}
		docs = append(docs, doc)
		if text != "" {
			allText += " " + text
		}
	}

	classifyStart := time.Now()
	detectedAt := cand.DetectedAt
	result := classify.Classify(allText, cand.Title, &detectedAt)
	timings.ClassifyMs = millis(time.Since(classifyStart))

	titleNorm := textnorm.Normalize(cand.Title)
	valid, skipReason := gate.ValidProcedure(titleNorm, cand.URL, cand.SourceType, &result, allText)
	if !valid {
		sklog.Infof("Skipping candidate %d (%s): %s", cand.ID, cand.URL, skipReason)
		// Keep the source row for the audit trail, with no procedure.
		if err := w.store.InsertRejectedSource(ctx, &types.Source{
			CandidateID:   cand.ID,
			URL:           cand.URL,
			SourceType:    cand.SourceType,
			FetchedAt:     now.Now(ctx),
			HTTPStatus:    resp.StatusCode,
			ContentSHA256: pageSHA,
		}); err != nil {
			sklog.Warningf("Failed to store rejected source for candidate %d: %s", cand.ID, err)
		}
		if err := w.store.UpdateCandidateStatus(ctx, cand.ID, types.CandidateSkipped, skipReason); err != nil {
			sklog.Warningf("Failed to mark candidate %d skipped: %s", cand.ID, err)
		}
		return nil, nil
	}

	proc := w.buildProcedure(ctx, cand, &result, allText)
	project, link, err := w.linkProject(ctx, proc)
	if err != nil {
		sklog.Warningf("Failed to link candidate %d to a project: %s", cand.ID, err)
	}

	return &store.ExtractionResult{
		CandidateID: cand.ID,
		Procedure:   proc,
		Source: &types.Source{
			ProcedureID:   &proc.ID,
			CandidateID:   cand.ID,
			URL:           cand.URL,
			SourceType:    cand.SourceType,
			FetchedAt:     now.Now(ctx),
			HTTPStatus:    resp.StatusCode,
			ContentSHA256: pageSHA,
		},
		Documents: docs,
		Project:   project,
		Link:      link,
	}, nil
}

// fetchDocument downloads one attachment, extracts its text through the text
// cache, and stores the blob. Returns nil when the document was skipped or
// failed; failures never abort the candidate.
func (w *Worker) fetchDocument(ctx context.Context, docURL string, prefilterScore float64, counts *types.CrawlCounts, timings *types.CrawlTimings) (*types.Document, string) {
	if w.cfg.Mode() == prefilter.ModeFast && prefilterScore < largePDFScoreFloor {
		if head, err := w.client.Head(ctx, docURL); err == nil && head.ContentLength > 0 {
			sizeMB := head.ContentLength / (1024 * 1024)
			if sizeMB > int64(w.cfg.PDFMaxSizeMB) {
				sklog.Debugf("Skipping large PDF %s (%d MB) in fast mode", docURL, sizeMB)
				counts.PDFsSkipped++
				return nil, ""
			}
		}
	}

	fetchStart := time.Now()
	resp, err := w.client.Get(ctx, docURL)
	timings.FetchPDFMs += millis(time.Since(fetchStart))
	if err != nil {
		sklog.Warningf("Failed to fetch document %s: %s", docURL, err)
		return nil, ""
	}
	if resp.StatusCode != http.StatusOK || len(resp.Body) == 0 {
		return nil, ""
	}
	counts.PDFsDownloaded++

	extractStart := time.Now()
	text, pages := w.documentText(docURL, resp.Body)
	timings.ExtractPDFMs += millis(time.Since(extractStart))

	sha := fetch.SHA256(resp.Body)
	path, err := w.blobs.Write(sha, resp.Body)
	if err != nil {
		sklog.Warningf("Failed to store document %s: %s", docURL, err)
		return nil, text
	}
	return &types.Document{
		SHA256:        sha,
		URL:           docURL,
		ContentType:   resp.ContentType,
		SizeBytes:     int64(len(resp.Body)),
		StoragePath:   path,
		TextExtracted: text != "",
		PageCount:     pages,
		FetchedAt:     now.Now(ctx),
	}, text
}

// documentText extracts PDF text through the on-disk cache. Extraction is
// progressive: the prefix pages first, the full document only when they
// contain a trigger term.
func (w *Worker) documentText(docURL string, body []byte) (string, int) {
	if text, ok := w.textCache.Get(docURL, len(body)); ok {
		return text, 0
	}
	prefixPages := pdfPrefixPagesDeep
	if w.cfg.Mode() == prefilter.ModeFast {
		prefixPages = pdfPrefixPagesFast
	}
	text, _, pages, err := textnorm.PDFProgressive(body, prefixPages)
	if err != nil {
		sklog.Debugf("Failed to extract text from %s: %s", docURL, err)
		return "", 0
	}
	if err := w.textCache.Put(docURL, len(body), text); err != nil {
		sklog.Debugf("Failed to cache text for %s: %s", docURL, err)
	}
	return text, pages
}

// procedureIDFor derives the procedure ID from the candidate. The queue
// delivers at least once, so a re-run of the same extraction job must land
// on the same procedure row and update it instead of inserting a duplicate.
func procedureIDFor(cand *types.Candidate) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("procedure/%s/%d", cand.MunicipalityKey, cand.ID)))
}

// buildProcedure assembles the procedure row from the classifier result and
// the attribute extractors.
func (w *Worker) buildProcedure(ctx context.Context, cand *types.Candidate, result *classify.Result, allText string) *types.Procedure {
	proc := &types.Procedure{
		ID:                procedureIDFor(cand),
		MunicipalityKey:   cand.MunicipalityKey,
		Title:             cand.Title,
		ProcedureType:     result.ProcedureType,
		LegalBasis:        result.LegalBasis,
		Components:        result.Components,
		Confidence:        result.Confidence,
		ReviewRecommended: result.ReviewRecommended,
		AmbiguityFlag:     result.AmbiguityFlag,
		EvidenceSnippets:  result.EvidenceSnippets,
		CreatedAt:         now.Now(ctx),
		UpdatedAt:         now.Now(ctx),
	}
	// A relevant page whose procedure step cannot be tagged is kept but
	// flagged for review.
	if proc.ProcedureType == "" || proc.ProcedureType == types.ProcedureTypeUnknown {
		proc.ProcedureType = types.ProcedureTypeUnknown
		proc.ReviewRecommended = true
	}
	if proc.LegalBasis == "" {
		proc.LegalBasis = types.LegalBasisUnknown
	}
	if proc.Components == "" {
		proc.Components = types.ComponentsUnclear
	}
	if w.cfg.Mode() == prefilter.ModeFast && result.Confidence < evidenceConfidenceFloor {
		proc.EvidenceSnippets = nil
	}

	proc.CapacityMW = extract.CapacityMW(allText)
	proc.CapacityMWH = extract.CapacityMWH(allText)
	proc.AreaHA = extract.AreaHA(allText)
	proc.DecisionDate = extract.DecisionDate(allText)
	proc.Developer = extract.Developer(allText)
	proc.Location = extract.Location(allText)
	return proc
}

func (w *Worker) writeExtractionStats(ctx context.Context, job *types.ExtractionJob, status types.JobStatus, counts types.CrawlCounts, timings types.CrawlTimings, errorClass string) {
	if err := w.store.InsertCrawlStats(ctx, &types.CrawlStats{
		RunID:           job.RunID,
		MunicipalityKey: job.MunicipalityKey,
		SourceType:      "extraction",
		JobStatus:       status,
		Counts:          counts,
		Timings:         timings,
		ErrorClass:      errorClass,
	}); err != nil {
		sklog.Warningf("Failed to write extraction stats for candidate %d: %s", job.CandidateID, err)
	}
}

func isPDFURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// documentURLs collects attachment links from a fetched page.
func documentURLs(body []byte, pageURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	urls := []string{}
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		lower := strings.ToLower(href)
		if !strings.HasSuffix(lower, ".pdf") && !strings.HasSuffix(lower, ".doc") && !strings.HasSuffix(lower, ".docx") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		urls = append(urls, abs)
	})
	return urls
}
