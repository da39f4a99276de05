package crawler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/witto13/BESS-Crawler/bess/go/discovery"
	"github.com/witto13/BESS-Crawler/bess/go/fetch"
	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/sklog"
	"github.com/witto13/BESS-Crawler/go/util"
)

// spiderKeywords mark homepage links worth following on a municipal site.
var spiderKeywords = []string{
	"bauen", "planung", "bebauungsplan", "bauleitplanung", "b-plan",
	"stadtplanung", "flaechennutzungsplan", "fnp",
	"bekanntmachung", "bekanntmachungen", "amtliche", "öffentlich", "oeffentlich",
	"satzung", "satzungen", "verordnung", "verordnungen",
	"verfahren", "beteiligung", "auslegung", "aufstellung",
	"bauvorbescheid", "baugenehmigung", "bauantrag", "bauvorhaben",
	"bauausschuss", "planungsausschuss", "gemeindevertretung",
}

// sectionProcedureTerms identify procedure links within a section.
var sectionProcedureTerms = []string{
	"bebauungsplan", "b-plan", "bauleitplanung",
	"aufstellungsbeschluss", "auslegung", "satzung",
	"bauvorbescheid", "baugenehmigung", "einvernehmen",
	"verfahren", "beteiligung",
}

// externalSystemTerms are hrefs handed off to the RIS or gazette crawlers
// instead of being followed here.
var externalSystemTerms = []string{"ris", "allris", "sessionnet", "amtsblatt"}

// Municipal spiders the official website of one municipality for planning
// pages: it loads the homepage, follows links whose text or URL contains
// planning vocabulary, and falls back to a predefined path list when the
// spider finds nothing.
type Municipal struct {
	client *fetch.Client
}

// NewMunicipal returns a municipal website crawler using the shared fetch
// client.
func NewMunicipal(client *fetch.Client) *Municipal {
	return &Municipal{client: client}
}

// DiscoverSections returns the accessible planning and announcement
// sections of the website.
func (m *Municipal) DiscoverSections(ctx context.Context, baseURL string) []string {
	base := strings.TrimRight(baseURL, "/")
	sections := m.spiderSections(ctx, base)
	if len(sections) == 0 {
		sklog.Debugf("Spider found no sections on %s, falling back to predefined paths", base)
		sections = m.pathSections(ctx, base)
	}
	return sections
}

func (m *Municipal) spiderSections(ctx context.Context, baseURL string) []string {
	accessible := []string{}
	resp, err := m.client.Get(ctx, baseURL)
	if err != nil || resp.StatusCode != http.StatusOK {
		return accessible
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return accessible
	}

	baseHost := ""
	if u, err := url.Parse(baseURL); err == nil {
		baseHost = strings.ToLower(u.Hostname())
	}

	seen := map[string]bool{baseURL: true}
	candidates := []string{}
	eachAnchor(doc, func(href, text string) {
		fullURL := resolveURL(href, baseURL)
		if fullURL == "" {
			return
		}
		u, err := url.Parse(fullURL)
		if err != nil || !strings.EqualFold(u.Hostname(), baseHost) {
			return
		}
		u.Fragment = ""
		u.RawQuery = ""
		normalized := strings.TrimRight(u.String(), "/")
		if seen[normalized] {
			return
		}
		combined := strings.ToLower(text + " " + href + " " + normalized)
		if util.ContainsAny(combined, spiderKeywords) {
			seen[normalized] = true
			candidates = append(candidates, normalized)
		}
	})
	sklog.Debugf("Spider: found %d candidate links on %s", len(candidates), baseURL)

	for _, candidate := range candidates {
		resp, err := m.client.Get(ctx, candidate)
		if err == nil && resp.StatusCode == http.StatusOK {
			accessible = append(accessible, candidate)
		}
	}
	sklog.Infof("Spider: discovered %d accessible sections on %s", len(accessible), baseURL)
	return accessible
}

func (m *Municipal) pathSections(ctx context.Context, baseURL string) []string {
	accessible := []string{}
	for _, sectionURL := range discovery.MunicipalPaths(baseURL) {
		resp, err := m.client.Get(ctx, sectionURL)
		if err == nil && resp.StatusCode == http.StatusOK {
			accessible = append(accessible, sectionURL)
		}
	}
	return accessible
}

// CrawlSection lists the procedure candidates of one section: direct
// document links and internal procedure pages. Links into RIS or gazette
// systems are left to their own crawlers.
func (m *Municipal) CrawlSection(ctx context.Context, sectionURL string) []Item {
	procedures := []Item{}
	resp, err := m.client.Get(ctx, sectionURL)
	if err != nil || resp.StatusCode != http.StatusOK {
		return procedures
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return procedures
	}
	eachAnchor(doc, func(href, text string) {
		hrefLower := strings.ToLower(href)
		combined := hrefLower + " " + strings.ToLower(text)
		if !util.ContainsAny(combined, sectionProcedureTerms) {
			return
		}
		fullURL := resolveURL(href, sectionURL)
		if fullURL == "" {
			return
		}
		if util.ContainsAny(hrefLower, externalSystemTerms) && !isDocumentHref(hrefLower) {
			sklog.Debugf("Found external system link %s: %s", fullURL, text)
			return
		}
		procedures = append(procedures, Item{
			URL:           fullURL,
			Title:         text,
			SourceType:    types.SourceMunicipal,
			DiscoveryPath: sectionURL,
		})
	})
	return procedures
}

// ProcedurePage is the detail view of a municipal procedure page.
type ProcedurePage struct {
	URL       string
	Title     string
	Documents []DocumentLink
}

// FetchProcedurePage loads a procedure page and its attachment links. The
// first h1 wins as title, falling back to the document title.
func (m *Municipal) FetchProcedurePage(ctx context.Context, pageURL string) (*ProcedurePage, error) {
	resp, err := m.client.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return &ProcedurePage{URL: pageURL}, nil
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return &ProcedurePage{
		URL:       pageURL,
		Title:     title,
		Documents: documentLinks(doc, pageURL),
	}, nil
}
