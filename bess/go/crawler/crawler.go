// Package crawler contains the three source-family crawlers: RIS agenda
// crawling, gazette (Amtsblatt) issues, and municipal website spidering.
// Each produces Items which are persisted as candidates.
package crawler

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/witto13/BESS-Crawler/bess/go/types"
)

// Item is one discovered page or document that may hold a procedure.
type Item struct {
	URL           string
	Title         string
	Date          *time.Time
	SourceType    types.SourceType
	DiscoveryPath string
}

// DocumentLink is an attachment found on a detail page.
type DocumentLink struct {
	URL   string
	Label string
}

func parseHTML(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

func resolveURL(href, base string) string {
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

func isDocumentHref(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasSuffix(lower, ".pdf") || strings.HasSuffix(lower, ".doc") || strings.HasSuffix(lower, ".docx")
}

// eachAnchor visits every a[href] in the document.
func eachAnchor(doc *goquery.Document, visit func(href, text string)) {
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		visit(href, strings.TrimSpace(sel.Text()))
	})
}

// documentLinks collects attachment links from a detail page.
func documentLinks(doc *goquery.Document, pageURL string) []DocumentLink {
	links := []DocumentLink{}
	seen := map[string]bool{}
	eachAnchor(doc, func(href, text string) {
		if !isDocumentHref(href) {
			return
		}
		docURL := resolveURL(href, pageURL)
		if docURL == "" || seen[docURL] {
			return
		}
		seen[docURL] = true
		links = append(links, DocumentLink{URL: docURL, Label: text})
	})
	return links
}
