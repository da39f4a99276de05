package discovery

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/witto13/BESS-Crawler/bess/go/fetch"
	"github.com/witto13/BESS-Crawler/go/sklog"
	"github.com/witto13/BESS-Crawler/go/util"
)

// Reason codes for a RIS probe.
const (
	ReasonFound          = "FOUND"
	ReasonNoSeedURL      = "NO_SEED_URL"
	ReasonAllURLs404     = "ALL_URLS_404"
	ReasonSSLBlocked     = "SSL_BLOCKED"
	ReasonNoMarkersFound = "NO_MARKERS_FOUND"
)

const maxAttemptedURLs = 10

// risEntryPoints are the suffixes tried under each candidate RIS base URL.
var risEntryPoints = []string{"", "/si0100.asp", "/si0100.php", "/index.php"}

// risLiveMarkers decide whether a responding page actually is a RIS.
var risLiveMarkers = []string{"sitzung", "gremium", "tagesordnung", "beschluss"}

// risCommitteePaths are the paths probed for committee lists.
var risCommitteePaths = []string{
	"/si0100.asp",
	"/si0100.php",
	"/index.php",
	"/sitzungen",
	"/gremien",
	"/tagesordnung",
	"/beschlussvorlagen",
	"/niederschriften",
	"/protokolle",
}

// Diagnostics records how a RIS probe went, for the crawl stats.
type Diagnostics struct {
	Method        string            `json:"method"`
	AttemptedURLs []string          `json:"attempted_urls"`
	FailedURLs    map[string]string `json:"failed_urls"`
	ReasonCode    string            `json:"reason_code"`
}

// Link is a discovered committee or session link.
type Link struct {
	Name string
	URL  string
}

// DiscoverRIS finds the RIS entry point of a municipality: site-driven
// links from the official website first, URL pattern guessing as fallback,
// then each candidate probed under the common entry point suffixes. A page
// counts as a live RIS iff it contains one of the session markers.
func DiscoverRIS(ctx context.Context, client *fetch.Client, municipalityName, baseURL, officialWebsiteURL string) (string, *Diagnostics) {
	diag := &Diagnostics{
		Method:     "pattern_guessing",
		FailedURLs: map[string]string{},
	}

	potential := []string{}
	if officialWebsiteURL != "" {
		links := DiscoverSiteLinks(ctx, client, officialWebsiteURL, 10, 1)
		if len(links.RISURLs) > 0 {
			potential = links.RISURLs
			diag.Method = "site_driven"
			sklog.Infof("Site-driven discovery found %d RIS URLs for %s", len(links.RISURLs), municipalityName)
		}
	}
	if len(potential) == 0 {
		potential = GuessRISURLs(municipalityName, baseURL)
	}
	diag.AttemptedURLs = util.AtMost(potential, maxAttemptedURLs)

	for _, base := range potential {
		for _, entryPoint := range risEntryPoints {
			testURL := strings.TrimRight(base, "/") + entryPoint
			resp, err := client.GetRIS(ctx, testURL)
			if err != nil {
				diag.FailedURLs[testURL] = util.Trunc(err.Error(), 200)
				continue
			}
			if resp.StatusCode != http.StatusOK {
				diag.FailedURLs[testURL] = http.StatusText(resp.StatusCode)
				continue
			}
			lower := strings.ToLower(string(resp.Body))
			if util.ContainsAny(lower, risLiveMarkers) {
				sklog.Infof("Found RIS at %s (method: %s)", testURL, diag.Method)
				diag.ReasonCode = ReasonFound
				return testURL, diag
			}
			diag.FailedURLs[testURL] = "no RIS markers"
		}
	}

	diag.ReasonCode = probeFailureReason(potential, diag.FailedURLs)
	sklog.Debugf("No RIS found for %s (reason: %s)", municipalityName, diag.ReasonCode)
	return "", diag
}

func probeFailureReason(potential []string, failed map[string]string) string {
	if len(potential) == 0 {
		return ReasonNoSeedURL
	}
	all404 := len(failed) > 0
	for _, msg := range failed {
		if !strings.Contains(msg, "404") && !strings.Contains(msg, "Not Found") {
			all404 = false
			break
		}
	}
	if all404 {
		return ReasonAllURLs404
	}
	for _, msg := range failed {
		if strings.Contains(msg, "SSL") || strings.Contains(msg, "certificate") || strings.Contains(msg, "TLS") {
			return ReasonSSLBlocked
		}
	}
	return ReasonNoMarkersFound
}

// DiscoverCommittees lists the planning-relevant committees of a RIS, per
// the committee allowlist.
func DiscoverCommittees(ctx context.Context, client *fetch.Client, risBaseURL string) []Link {
	committees := []Link{}
	seen := map[string]bool{}
	base, err := url.Parse(risBaseURL)
	if err != nil {
		sklog.Warningf("Invalid RIS base URL %q: %s", risBaseURL, err)
		return committees
	}
	for _, path := range risCommitteePaths {
		ref, err := url.Parse(path)
		if err != nil {
			continue
		}
		pageURL := base.ResolveReference(ref).String()
		resp, err := client.GetRIS(ctx, pageURL)
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			continue
		}
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			textLower := strings.ToLower(text)
			if !util.ContainsAny(textLower, CommitteeAllowlist) {
				return
			}
			href, _ := sel.Attr("href")
			committeeURL := absoluteURL(href, pageURL)
			if committeeURL == "" || seen[committeeURL] {
				return
			}
			seen[committeeURL] = true
			committees = append(committees, Link{Name: text, URL: committeeURL})
		})
	}
	return committees
}
