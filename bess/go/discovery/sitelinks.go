package discovery

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/witto13/BESS-Crawler/bess/go/fetch"
	"github.com/witto13/BESS-Crawler/go/sklog"
)

const (
	defaultMaxPages = 20
	defaultMaxDepth = 2
)

// SiteLinks are the RIS and gazette URLs discovered on an official
// municipal website, ranked best first.
type SiteLinks struct {
	RISURLs            []string
	AmtsblattURLs      []string
	BekanntmachungURLs []string
}

func sameDomain(url1, url2 string) bool {
	u1, err1 := url.Parse(url1)
	u2, err2 := url.Parse(url2)
	if err1 != nil || err2 != nil {
		return false
	}
	return strings.EqualFold(u1.Hostname(), u2.Hostname())
}

func absoluteURL(href, base string) string {
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := baseURL.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

func rankRISURL(u string) int {
	lower := strings.ToLower(u)
	score := 0
	if strings.Contains(lower, "allris") || strings.Contains(lower, "sessionnet") {
		score += 10
	}
	if strings.Contains(lower, "si0100") || strings.Contains(lower, "ris") {
		score += 5
	}
	return score
}

func rankAmtsblattURL(u string) int {
	lower := strings.ToLower(u)
	score := 0
	if strings.Contains(lower, "amtsblatt") {
		score += 10
	}
	if strings.Contains(lower, "bekanntmachung") {
		score += 5
	}
	return score
}

func rankedSlice(set map[string]bool, rank func(string) int) []string {
	rv := make([]string, 0, len(set))
	for u := range set {
		rv = append(rv, u)
	}
	sort.SliceStable(rv, func(i, j int) bool {
		ri, rj := rank(rv[i]), rank(rv[j])
		if ri != rj {
			return ri > rj
		}
		return rv[i] < rv[j]
	})
	return rv
}

type queuedPage struct {
	url   string
	depth int
}

// DiscoverSiteLinks crawls an official municipal website (homepage,
// sitemap, impressum and friends, up to maxPages pages and maxDepth levels)
// and collects RIS and gazette links. RIS links may be cross-domain;
// gazette and Bekanntmachung links are kept same-domain only.
func DiscoverSiteLinks(ctx context.Context, client *fetch.Client, officialURL string, maxPages, maxDepth int) *SiteLinks {
	links := &SiteLinks{}
	if !strings.HasPrefix(officialURL, "http://") && !strings.HasPrefix(officialURL, "https://") {
		sklog.Warningf("Invalid official website URL: %q", officialURL)
		return links
	}
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	if maxDepth < 0 {
		maxDepth = defaultMaxDepth
	}

	base := strings.TrimRight(officialURL, "/")
	risSet := map[string]bool{}
	amtsblattSet := map[string]bool{}
	bekanntmachungSet := map[string]bool{}
	visited := map[string]bool{}
	queue := []queuedPage{}
	for _, p := range discoveryPages {
		queue = append(queue, queuedPage{url: base + p, depth: 0})
	}

	fetched := 0
	for len(queue) > 0 && fetched < maxPages {
		page := queue[0]
		queue = queue[1:]
		if visited[page.url] || page.depth > maxDepth {
			continue
		}
		visited[page.url] = true
		fetched++

		resp, err := client.Get(ctx, page.url)
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			continue
		}

		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			linkText := strings.TrimSpace(sel.Text())
			fullURL := absoluteURL(href, page.url)
			if fullURL == "" {
				return
			}
			if IsRISLink(fullURL, linkText) {
				risSet[fullURL] = true
			}
			// RIS portals are routinely hosted off-site; gazette and
			// Bekanntmachung pages are only trusted on the municipality's
			// own domain.
			if sameDomain(fullURL, base) {
				if IsAmtsblattLink(fullURL, linkText) {
					amtsblattSet[fullURL] = true
				} else {
					urlLower := strings.ToLower(fullURL)
					textLower := strings.ToLower(linkText)
					if containsAnyTerm(urlLower, []string{"bekanntmach", "veroeffentlich", "auslegung"}) ||
						containsAnyTerm(textLower, []string{"bekanntmachung", "veröffentlichung", "öffentliche auslegung"}) {
						bekanntmachungSet[fullURL] = true
					}
				}
			}
			if page.depth < maxDepth && sameDomain(fullURL, base) && !visited[fullURL] {
				urlLower := strings.ToLower(fullURL)
				if containsAnyTerm(urlLower, []string{"impressum", "kontakt", "sitemap", "index", "startseite"}) {
					queue = append(queue, queuedPage{url: fullURL, depth: page.depth + 1})
				}
			}
		})
	}

	links.RISURLs = rankedSlice(risSet, rankRISURL)
	links.AmtsblattURLs = rankedSlice(amtsblattSet, rankAmtsblattURL)
	links.BekanntmachungURLs = rankedSlice(bekanntmachungSet, rankAmtsblattURL)
	sklog.Infof("Site discovery for %s: found %d RIS, %d Amtsblatt, %d Bekanntmachung URLs (fetched %d pages)", base, len(links.RISURLs), len(links.AmtsblattURLs), len(links.BekanntmachungURLs), fetched)
	return links
}
