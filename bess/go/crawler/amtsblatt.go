package crawler

import (
	"context"
	"net/http"
	"strings"

	"github.com/witto13/BESS-Crawler/bess/go/discovery"
	"github.com/witto13/BESS-Crawler/bess/go/fetch"
	"github.com/witto13/BESS-Crawler/bess/go/textnorm"
	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/sklog"
	"github.com/witto13/BESS-Crawler/go/util"
)

// amtsblattMarkers decide whether a responding page is a gazette.
var amtsblattMarkers = []string{"amtsblatt", "bekanntmachung", "veröffentlichung", "ausgabe"}

// issueLinkTerms identify issue links on a gazette index page.
var issueLinkTerms = []string{"ausgabe", "nummer", "jahr", "2023", "2024", "2025", "2026"}

// issueProcedureKeywords: an issue is only worth extracting when its page
// already mentions a planning, permit, or storage term.
var issueProcedureKeywords = []string{
	"bebauungsplan", "b-plan", "bauleitplanung",
	"aufstellungsbeschluss", "öffentliche auslegung", "satzungsbeschluss",
	"bauvorbescheid", "baugenehmigung",
	"§ 36", "§36", "gemeindliches einvernehmen",
	"batteriespeicher", "energiespeicher", "speicheranlage",
}

// Amtsblatt crawls the official gazette of one municipality.
type Amtsblatt struct {
	client *fetch.Client
}

// NewAmtsblatt returns an Amtsblatt crawler using the shared fetch client.
func NewAmtsblatt(client *fetch.Client) *Amtsblatt {
	return &Amtsblatt{client: client}
}

// Discover finds the gazette index page: site-driven links first, then URL
// guessing, each candidate verified by its page content.
func (a *Amtsblatt) Discover(ctx context.Context, municipalityName, baseURL, officialWebsiteURL string) (string, *discovery.Diagnostics) {
	diag := &discovery.Diagnostics{
		Method:     "pattern_guessing",
		FailedURLs: map[string]string{},
	}

	potential := []string{}
	if officialWebsiteURL != "" {
		links := discovery.DiscoverSiteLinks(ctx, a.client, officialWebsiteURL, 10, 1)
		potential = append(potential, links.AmtsblattURLs...)
		potential = append(potential, links.BekanntmachungURLs...)
		if len(potential) > 0 {
			diag.Method = "site_driven"
		}
	}
	if len(potential) == 0 {
		potential = discovery.GuessAmtsblattURLs(municipalityName, baseURL)
	}
	diag.AttemptedURLs = util.AtMost(potential, 10)

	for _, candidate := range potential {
		resp, err := a.client.Get(ctx, candidate)
		if err != nil {
			diag.FailedURLs[candidate] = util.Trunc(err.Error(), 200)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			diag.FailedURLs[candidate] = http.StatusText(resp.StatusCode)
			continue
		}
		if util.ContainsAny(strings.ToLower(string(resp.Body)), amtsblattMarkers) {
			sklog.Infof("Found Amtsblatt at %s (method: %s)", candidate, diag.Method)
			diag.ReasonCode = discovery.ReasonFound
			return candidate, diag
		}
		diag.FailedURLs[candidate] = "no gazette markers"
	}

	if len(potential) == 0 {
		diag.ReasonCode = discovery.ReasonNoSeedURL
	} else {
		diag.ReasonCode = discovery.ReasonNoMarkersFound
		for _, msg := range diag.FailedURLs {
			if strings.Contains(msg, "SSL") || strings.Contains(msg, "certificate") || strings.Contains(msg, "TLS") {
				diag.ReasonCode = discovery.ReasonSSLBlocked
				break
			}
		}
	}
	return "", diag
}

// ListIssues lists gazette issues from the index page.
func (a *Amtsblatt) ListIssues(ctx context.Context, amtsblattURL string) []Item {
	issues := []Item{}
	resp, err := a.client.Get(ctx, amtsblattURL)
	if err != nil || resp.StatusCode != http.StatusOK {
		return issues
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return issues
	}
	eachAnchor(doc, func(href, text string) {
		if !util.ContainsAny(strings.ToLower(text), issueLinkTerms) {
			return
		}
		issueURL := resolveURL(href, amtsblattURL)
		if issueURL == "" {
			return
		}
		issues = append(issues, Item{
			URL:           issueURL,
			Title:         text,
			SourceType:    types.SourceAmtsblatt,
			DiscoveryPath: amtsblattURL,
		})
	})
	return issues
}

// ExtractIssueProcedures pulls the procedure candidates out of one gazette
// issue: its PDF attachments when the issue page mentions a planning or
// storage term, else the issue page itself.
func (a *Amtsblatt) ExtractIssueProcedures(ctx context.Context, issueURL string) []Item {
	procedures := []Item{}
	resp, err := a.client.Get(ctx, issueURL)
	if err != nil || resp.StatusCode != http.StatusOK {
		return procedures
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return procedures
	}
	pageText, err := textnorm.HTMLToText(string(resp.Body))
	if err != nil {
		pageText = string(resp.Body)
	}
	if !util.ContainsAny(strings.ToLower(pageText), issueProcedureKeywords) {
		return procedures
	}

	eachAnchor(doc, func(href, text string) {
		if !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return
		}
		docURL := resolveURL(href, issueURL)
		if docURL == "" {
			return
		}
		title := text
		if title == "" {
			title = "Amtsblatt PDF"
		}
		procedures = append(procedures, Item{
			URL:           docURL,
			Title:         title,
			SourceType:    types.SourceAmtsblatt,
			DiscoveryPath: issueURL,
		})
	})
	if len(procedures) == 0 {
		title := strings.TrimSpace(doc.Find("title").First().Text())
		if title == "" {
			title = "Amtsblatt Issue"
		}
		procedures = append(procedures, Item{
			URL:           issueURL,
			Title:         title,
			SourceType:    types.SourceAmtsblatt,
			DiscoveryPath: issueURL,
		})
	}
	return procedures
}
