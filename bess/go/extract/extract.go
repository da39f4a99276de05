// Package extract pulls structured attributes out of classified documents:
// capacities, areas, decision dates, developers, and parcel locations. All
// extraction is regex-based; the documents are too varied for anything
// stricter to pay off.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/witto13/BESS-Crawler/bess/go/textnorm"
)

var (
	mwPattern  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:mw|megawatt|m\.?w\.?)`)
	mwhPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:mwh|megawattstunden|m\.?w\.?h\.?)`)
	kwPattern  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:kw|kilowatt|k\.?w\.?)`)
	kwhPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:kwh|kilowattstunden|k\.?w\.?h\.?)`)

	hectarePattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:ha|hektar|hektare)`)
	sqmPattern     = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:qm|m²|quadratmeter)`)
	sqkmPattern    = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:km²|quadratkilometer)`)

	datePatterns = []*regexp.Regexp{
		// DD.MM.YYYY
		regexp.MustCompile(`(\d{1,2})\.\s*(\d{1,2})\.\s*(\d{4})`),
		// DD.MM.YY
		regexp.MustCompile(`(\d{1,2})\.\s*(\d{1,2})\.\s*(\d{2})\b`),
		// DD/MM/YYYY or DD-MM-YYYY
		regexp.MustCompile(`(\d{1,2})[/-]\s*(\d{1,2})[/-]\s*(\d{4})`),
	}

	companyPattern = regexp.MustCompile(`\b[A-ZÄÖÜ][A-Za-zÄÖÜäöüß0-9\s,&.-]+?(?:GmbH & Co\. KG|GmbH|AG|UG|KG)\b`)

	gemarkungPattern  = regexp.MustCompile(`(?i)gemarkung\s+([a-zäöüß][a-zäöüß\s-]+)`)
	flurPattern       = regexp.MustCompile(`(?i)flur\s+(\d+)`)
	flurstueckPattern = regexp.MustCompile(`(?i)flurstueck\s+(\d+[a-z]?)`)
	strassePattern    = regexp.MustCompile(`(?i)(?:strasse|str\.)\s+([a-zäöüß][a-zäöüß\s-]+)`)
	coordPattern      = regexp.MustCompile(`(\d+[.,]\d+)\s*°?\s*[NSEW]?\s*[,/]\s*(\d+[.,]\d+)\s*°?\s*[NSEW]?`)
)

// decisionKeywords mark dates that are likely the decision date rather than
// an incidental date in the document.
var decisionKeywords = []string{
	"aufstellungsbeschluss",
	"beschluss",
	"satzungsbeschluss",
	"beschlossen am",
	"beschlossen",
	"beschlussfassung",
	"beschluss vom",
	"beschlussfassung am",
}

func parseGermanFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func largestMatch(text string, pattern *regexp.Regexp, scale float64) (float64, bool) {
	best := 0.0
	found := false
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		if v, ok := parseGermanFloat(m[1]); ok {
			v *= scale
			if !found || v > best {
				best = v
				found = true
			}
		}
	}
	return best, found
}

// CapacityMW returns the largest power figure in megawatts, which is almost
// always the project capacity. kW figures are converted.
func CapacityMW(text string) *float64 {
	mw, okMW := largestMatch(text, mwPattern, 1)
	kw, okKW := largestMatch(text, kwPattern, 1.0/1000.0)
	switch {
	case okMW && okKW:
		if kw > mw {
			mw = kw
		}
		return &mw
	case okMW:
		return &mw
	case okKW:
		return &kw
	}
	return nil
}

// CapacityMWH returns the largest energy figure in megawatt hours.
func CapacityMWH(text string) *float64 {
	mwh, okMWH := largestMatch(text, mwhPattern, 1)
	kwh, okKWH := largestMatch(text, kwhPattern, 1.0/1000.0)
	switch {
	case okMWH && okKWH:
		if kwh > mwh {
			mwh = kwh
		}
		return &mwh
	case okMWH:
		return &mwh
	case okKWH:
		return &kwh
	}
	return nil
}

// AreaHA returns the largest area figure, converted to hectares.
func AreaHA(text string) *float64 {
	best := 0.0
	found := false
	for _, c := range []struct {
		pattern *regexp.Regexp
		scale   float64
	}{
		{hectarePattern, 1},
		{sqmPattern, 0.0001},
		{sqkmPattern, 100},
	} {
		if v, ok := largestMatch(text, c.pattern, c.scale); ok {
			if !found || v > best {
				best = v
				found = true
			}
		}
	}
	if !found {
		return nil
	}
	return &best
}

type datedMatch struct {
	pos  int
	date time.Time
}

// extractDates returns all plausible dates (years 2020-2030) with their
// position in the text.
func extractDates(text string) []datedMatch {
	rv := []datedMatch{}
	for _, pattern := range datePatterns {
		for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
			day, _ := strconv.Atoi(text[loc[2]:loc[3]])
			month, _ := strconv.Atoi(text[loc[4]:loc[5]])
			yearStr := text[loc[6]:loc[7]]
			year, _ := strconv.Atoi(yearStr)
			if len(yearStr) == 2 {
				if year < 50 {
					year += 2000
				} else {
					year += 1900
				}
			}
			if year < 2020 || year > 2030 || month < 1 || month > 12 || day < 1 || day > 31 {
				continue
			}
			d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			if d.Day() != day || d.Month() != time.Month(month) {
				// time.Date normalizes e.g. 31.02. into March; reject.
				continue
			}
			rv = append(rv, datedMatch{pos: loc[0], date: d})
		}
	}
	return rv
}

// DecisionDate finds the Aufstellungsbeschluss or similar decision date: the
// first date within 200 chars of a decision keyword, else the first
// plausible date in the document.
func DecisionDate(text string) *time.Time {
	dates := extractDates(text)
	if len(dates) == 0 {
		return nil
	}
	textLower := strings.ToLower(text)
	for _, keyword := range decisionKeywords {
		keywordPos := strings.Index(textLower, keyword)
		if keywordPos < 0 {
			continue
		}
		for _, d := range dates {
			diff := d.pos - keywordPos
			if diff < 0 {
				diff = -diff
			}
			if diff < 200 {
				date := d.date
				return &date
			}
		}
	}
	first := dates[0].date
	return &first
}

// Companies returns company names (GmbH, AG, UG, KG suffixes) found in the
// text, in document order, deduplicated.
func Companies(text string) []string {
	seen := map[string]bool{}
	rv := []string{}
	for _, m := range companyPattern.FindAllString(text, -1) {
		name := strings.TrimSpace(m)
		if !seen[name] {
			seen[name] = true
			rv = append(rv, name)
		}
	}
	return rv
}

// Developer joins up to three company names with "; ". Returns "" when none
// were found.
func Developer(text string) string {
	companies := Companies(text)
	if len(companies) > 3 {
		companies = companies[:3]
	}
	return strings.Join(companies, "; ")
}

// Location extracts parcel information (Gemarkung, Flur, Flurstück, street,
// coordinates) into a semicolon-joined string, or "" when nothing matched.
// Matching runs on normalized text, so Flurstück is found as flurstueck.
func Location(text string) string {
	normalized := textnorm.Normalize(text)
	parts := []string{}

	if m := gemarkungPattern.FindStringSubmatch(normalized); m != nil {
		parts = append(parts, "Gemarkung: "+strings.TrimSpace(m[1]))
	}
	if m := flurPattern.FindStringSubmatch(normalized); m != nil {
		parts = append(parts, "Flur: "+m[1])
	}
	if m := flurstueckPattern.FindStringSubmatch(normalized); m != nil {
		parts = append(parts, "Flurstück: "+m[1])
	}
	if m := strassePattern.FindStringSubmatch(normalized); m != nil {
		parts = append(parts, "Straße: "+strings.TrimSpace(m[1]))
	}
	if m := coordPattern.FindStringSubmatch(normalized); m != nil {
		parts = append(parts, "Koordinaten: "+m[1]+", "+m[2])
	}
	return strings.Join(parts, "; ")
}
