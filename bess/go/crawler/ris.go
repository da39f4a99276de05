package crawler

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/witto13/BESS-Crawler/bess/go/discovery"
	"github.com/witto13/BESS-Crawler/bess/go/fetch"
	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/sklog"
	"github.com/witto13/BESS-Crawler/go/util"
)

// Smart pagination: sessions older than the cutoff stop the crawl after
// maxConsecutiveOld in a row, since RIS lists sessions newest first.
var sessionCutoff = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

const maxConsecutiveOld = 3

var (
	sessionDateDots = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	sessionDateDash = regexp.MustCompile(`(\d{1,2})-(\d{1,2})-(\d{4})`)
	sessionDateISO  = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
)

// sessionLinkTerms identify session links on a committee page.
var sessionLinkTerms = []string{"sitzung", "sitzungstag", "datum"}

// privilegedItemTerms are the agenda phrasings of planning and permit items.
var privilegedItemTerms = []string{
	"bebauungsplan", "b-plan", "bauleitplanung",
	"bauvorbescheid", "baugenehmigung",
	"einvernehmen", "§ 36", "§36",
	"§ 35", "§35", "§ 34", "§34",
	"bauantrag", "bauvoranfrage", "vorbescheid",
	"stellungnahme", "kenntnisnahme",
	"antrag auf errichtung",
}

// energyItemTerms widen the agenda filter to storage and grid vocabulary.
var energyItemTerms = []string{
	"batteriespeicher", "energiespeicher", "speicheranlage",
	"speicher", "photovoltaik", "umspannwerk",
	"energie", "containeranlage",
}

// RIS crawls the Ratsinformationssystem of one municipality.
type RIS struct {
	client *fetch.Client
}

// NewRIS returns a RIS crawler using the shared fetch client.
func NewRIS(client *fetch.Client) *RIS {
	return &RIS{client: client}
}

// parseSessionDate extracts a session date from link text, trying German
// dotted, dashed, and ISO forms.
func parseSessionDate(text string) *time.Time {
	if m := sessionDateDots.FindStringSubmatch(text); m != nil {
		return buildDate(m[3], m[2], m[1])
	}
	if m := sessionDateDash.FindStringSubmatch(text); m != nil {
		return buildDate(m[3], m[2], m[1])
	}
	if m := sessionDateISO.FindStringSubmatch(text); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	return nil
}

func buildDate(yearStr, monthStr, dayStr string) *time.Time {
	year, _ := strconv.Atoi(yearStr)
	month, _ := strconv.Atoi(monthStr)
	day, _ := strconv.Atoi(dayStr)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || int(d.Month()) != month {
		return nil
	}
	return &d
}

type sessionLink struct {
	url   string
	title string
	date  *time.Time
}

// committeeSessions lists the sessions of a committee, with dates parsed
// from the link text when present.
func (r *RIS) committeeSessions(ctx context.Context, committeeURL string) []sessionLink {
	sessions := []sessionLink{}
	resp, err := r.client.GetRIS(ctx, committeeURL)
	if err != nil || resp.StatusCode != http.StatusOK {
		return sessions
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return sessions
	}
	eachAnchor(doc, func(href, text string) {
		if !util.ContainsAny(strings.ToLower(text), sessionLinkTerms) {
			return
		}
		sessionURL := resolveURL(href, committeeURL)
		if sessionURL == "" {
			return
		}
		sessions = append(sessions, sessionLink{
			url:   sessionURL,
			title: text,
			date:  parseSessionDate(text),
		})
	})
	return sessions
}

// sessionItems extracts the planning-relevant agenda items of a session.
func (r *RIS) sessionItems(ctx context.Context, sessionURL string) []Item {
	items := []Item{}
	resp, err := r.client.GetRIS(ctx, sessionURL)
	if err != nil || resp.StatusCode != http.StatusOK {
		return items
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return items
	}
	eachAnchor(doc, func(href, text string) {
		lower := strings.ToLower(text)
		if !util.ContainsAny(lower, privilegedItemTerms) && !util.ContainsAny(lower, energyItemTerms) {
			return
		}
		itemURL := resolveURL(href, sessionURL)
		if itemURL == "" {
			return
		}
		items = append(items, Item{
			URL:           itemURL,
			Title:         text,
			SourceType:    types.SourceRIS,
			DiscoveryPath: sessionURL,
		})
	})
	return items
}

// ListProcedures discovers the municipality's RIS and walks committees,
// sessions, and agenda items. Pagination stops per committee once
// maxConsecutiveOld sessions older than the cutoff were seen in a row.
func (r *RIS) ListProcedures(ctx context.Context, municipalityName, baseURL, officialWebsiteURL string) ([]Item, *discovery.Diagnostics) {
	risURL, diag := discovery.DiscoverRIS(ctx, r.client, municipalityName, baseURL, officialWebsiteURL)
	sklog.Infof("RIS discovery for %s: method=%s, reason=%s, attempted=%d URLs", municipalityName, diag.Method, diag.ReasonCode, len(diag.AttemptedURLs))
	if risURL == "" {
		if strings.HasPrefix(baseURL, "http://") || strings.HasPrefix(baseURL, "https://") {
			return r.listFallback(ctx, baseURL), diag
		}
		return nil, diag
	}

	committees := discovery.DiscoverCommittees(ctx, r.client, risURL)
	if len(committees) == 0 {
		sklog.Debugf("No committees found in RIS %s", risURL)
		return r.listSessionsDirect(ctx, risURL), diag
	}

	procedures := []Item{}
	for _, committee := range committees {
		consecutiveOld := 0
		for _, session := range r.committeeSessions(ctx, committee.URL) {
			if session.date != nil {
				if session.date.Before(sessionCutoff) {
					consecutiveOld++
					if consecutiveOld >= maxConsecutiveOld {
						sklog.Debugf("Stopping pagination for %s: %d consecutive sessions older than %s", committee.Name, consecutiveOld, sessionCutoff.Format("2006-01-02"))
						break
					}
					continue
				}
				consecutiveOld = 0
			} else {
				// Undated sessions may be recent; keep going.
				consecutiveOld = 0
			}
			for _, item := range r.sessionItems(ctx, session.url) {
				item.Date = session.date
				procedures = append(procedures, item)
			}
		}
	}
	return procedures, diag
}

// listSessionsDirect handles RIS installations without a committee list by
// following session links off the entry page.
func (r *RIS) listSessionsDirect(ctx context.Context, risURL string) []Item {
	procedures := []Item{}
	resp, err := r.client.GetRIS(ctx, risURL)
	if err != nil || resp.StatusCode != http.StatusOK {
		return procedures
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return procedures
	}
	sessionURLs := []string{}
	eachAnchor(doc, func(href, text string) {
		if util.ContainsAny(strings.ToLower(text), []string{"sitzung", "tagesordnung", "beschluss"}) {
			if u := resolveURL(href, risURL); u != "" {
				sessionURLs = append(sessionURLs, u)
			}
		}
	})
	for _, sessionURL := range sessionURLs {
		procedures = append(procedures, r.sessionItems(ctx, sessionURL)...)
	}
	return procedures
}

// listFallback scrapes SessionNet-style document links directly off the
// common entry points when no RIS was positively identified.
func (r *RIS) listFallback(ctx context.Context, baseURL string) []Item {
	procedures := []Item{}
	base := strings.TrimRight(baseURL, "/")
	for _, path := range []string{"/si0100.asp", "/si0100.php", "/index.php"} {
		resp, err := r.client.GetRIS(ctx, base+path)
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}
		doc, err := parseHTML(resp.Body)
		if err != nil {
			continue
		}
		eachAnchor(doc, func(href, text string) {
			if !util.ContainsAny(strings.ToLower(href), []string{"si0200", "si0300", "dokument", "vorlage", "antrag"}) {
				return
			}
			if u := resolveURL(href, base+path); u != "" {
				procedures = append(procedures, Item{
					URL:           u,
					Title:         text,
					SourceType:    types.SourceRIS,
					DiscoveryPath: baseURL,
				})
			}
		})
	}
	return procedures
}

// AgendaItem is the detail view of one RIS agenda item.
type AgendaItem struct {
	URL       string
	Title     string
	Documents []DocumentLink
}

// FetchAgendaItem loads an agenda item page and its attachment links.
func (r *RIS) FetchAgendaItem(ctx context.Context, itemURL string) (*AgendaItem, error) {
	resp, err := r.client.GetRIS(ctx, itemURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return &AgendaItem{URL: itemURL}, nil
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return nil, err
	}
	return &AgendaItem{
		URL:       itemURL,
		Title:     strings.TrimSpace(doc.Find("title").First().Text()),
		Documents: documentLinks(doc, itemURL),
	}, nil
}
