// Package discovery locates the crawlable surfaces of a municipality: its
// Ratsinformationssystem (RIS), its official gazette (Amtsblatt), and the
// planning pages of its website. Site-driven link discovery runs first and
// URL pattern guessing is the fallback.
package discovery

import (
	"regexp"
	"strings"

	"github.com/witto13/BESS-Crawler/bess/go/textnorm"
)

var (
	risDomainPatterns = []*regexp.Regexp{
		regexp.MustCompile(`allris`),
		regexp.MustCompile(`sessionnet`),
		regexp.MustCompile(`ratsinfo`),
		regexp.MustCompile(`ris\.`),
		regexp.MustCompile(`\.ris\.`),
	}

	risPathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/ris`),
		regexp.MustCompile(`/ratsinfo`),
		regexp.MustCompile(`/sessionnet`),
		regexp.MustCompile(`/si0100`),
		regexp.MustCompile(`/to0100`),
		regexp.MustCompile(`/vo0200`),
		regexp.MustCompile(`/bi/`),
		regexp.MustCompile(`/gremien`),
		regexp.MustCompile(`/sitzung`),
		regexp.MustCompile(`/tagesordnung`),
	}

	amtsblattPathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/amtsblatt`),
		regexp.MustCompile(`/amtliche-bekanntmach`),
		regexp.MustCompile(`/bekanntmach`),
		regexp.MustCompile(`/veroeffentlich`),
		regexp.MustCompile(`/auslegung`),
		regexp.MustCompile(`/bauleitplanung`),
		regexp.MustCompile(`/beteiligung`),
		regexp.MustCompile(`/oeffentliche-auslegung`),
	}

	parenRe    = regexp.MustCompile(`\([^)]*\)`)
	nonURLRe   = regexp.MustCompile(`[^a-z0-9\-.]`)
	dashRunsRe = regexp.MustCompile(`-+`)
	spacesRe   = regexp.MustCompile(`[\s_]+`)
)

var risLinkTexts = []string{"ris", "ratsinfo", "sessionnet", "allris", "sitzung", "gremium"}

var amtsblattLinkTexts = []string{"amtsblatt", "bekanntmachung", "amtliche bekanntmachung"}

// discoveryPages are the site pages probed for RIS and gazette links, in
// priority order.
var discoveryPages = []string{
	"",
	"/sitemap.xml",
	"/impressum",
	"/kontakt",
	"/startseite",
	"/index",
}

// municipalDiscoveryPaths are the paths of a municipal website that carry
// announcements and planning procedures.
var municipalDiscoveryPaths = []string{
	"/bekanntmachungen",
	"/amtliche-bekanntmachungen",
	"/oeffentliche-bekanntmachungen",
	"/aktuelles/bekanntmachungen",
	"/bauleitplanung",
	"/stadtplanung",
	"/bebauungsplaene",
	"/bauleitplaene",
	"/planung-und-bauen",
	"/bauen-und-wohnen",
	"/b-plan",
	"/bebauungsplan",
	"/verfahren",
	"/beteiligung",
}

// amtsblattPaths are guessed gazette paths under a municipal base URL.
var amtsblattPaths = []string{
	"/amtsblatt",
	"/amtliches-mitteilungsblatt",
	"/bekanntmachungen",
	"/amtliche-bekanntmachungen",
	"/veroeffentlichungen",
}

// CommitteeAllowlist names the committees that handle planning and permit
// procedures. Only sessions of these committees are crawled.
var CommitteeAllowlist = []string{
	"bauausschuss",
	"hauptausschuss",
	"gemeindevertretung",
	"stadtverordnetenversammlung",
	"bau- und planungsausschuss",
	"planungsausschuss",
	"wirtschaftsausschuss",
	"umweltausschuss",
	"wirtschaft",
	"umwelt",
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func containsAnyTerm(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// IsRISLink reports whether a URL or its link text points at a RIS.
func IsRISLink(url, linkText string) bool {
	urlLower := strings.ToLower(url)
	textLower := strings.ToLower(linkText)
	return matchesAny(urlLower, risDomainPatterns) || matchesAny(urlLower, risPathPatterns) || containsAnyTerm(textLower, risLinkTexts)
}

// IsAmtsblattLink reports whether a URL or its link text points at a
// gazette page.
func IsAmtsblattLink(url, linkText string) bool {
	urlLower := strings.ToLower(url)
	textLower := strings.ToLower(linkText)
	return matchesAny(urlLower, amtsblattPathPatterns) || containsAnyTerm(textLower, amtsblattLinkTexts)
}

// SanitizeName turns a municipality name into a hostname fragment:
// parenthesized suffixes stripped, umlauts folded, everything outside
// [a-z0-9-.] removed. "Schöneiche (bei Berlin)" becomes "schoeneiche".
func SanitizeName(name string) string {
	sanitized := parenRe.ReplaceAllString(name, "")
	sanitized = strings.ToLower(strings.ReplaceAll(sanitized, " ", ""))
	sanitized = textnorm.FoldUmlauts(sanitized)
	return nonURLRe.ReplaceAllString(sanitized, "")
}

// sanitizeNameDashed keeps word boundaries as dashes, for gazette URL
// guessing where "bad-belzig.de" style hostnames are common.
func sanitizeNameDashed(name string) string {
	sanitized := parenRe.ReplaceAllString(strings.ToLower(name), "")
	sanitized = textnorm.FoldUmlauts(sanitized)
	sanitized = spacesRe.ReplaceAllString(sanitized, "-")
	sanitized = nonURLRe.ReplaceAllString(sanitized, "")
	return strings.Trim(dashRunsRe.ReplaceAllString(sanitized, "-"), "-")
}

// MunicipalPaths returns the announcement and planning URLs to crawl under
// a municipal website.
func MunicipalPaths(baseURL string) []string {
	base := strings.TrimRight(baseURL, "/")
	urls := make([]string, 0, len(municipalDiscoveryPaths))
	for _, p := range municipalDiscoveryPaths {
		urls = append(urls, base+p)
	}
	return urls
}

// GuessRISURLs returns candidate RIS base URLs for a municipality, hostname
// patterns first, then paths under its website.
func GuessRISURLs(municipalityName, baseURL string) []string {
	urls := []string{}
	m := SanitizeName(municipalityName)
	if m != "" {
		urls = append(urls,
			"https://"+m+".sessionnet.de",
			"https://ris."+m+".de",
			"https://"+m+".allris.de",
			"https://allris."+m+".de",
		)
	}
	if strings.HasPrefix(baseURL, "http://") || strings.HasPrefix(baseURL, "https://") {
		base := strings.TrimRight(baseURL, "/")
		urls = append(urls,
			base+"/sessionnet",
			base+"/ris",
			base+"/ratsinformationssystem",
			base+"/si0100.asp",
			base+"/si0100.php",
		)
	}
	return urls
}

// GuessAmtsblattURLs returns candidate gazette URLs for a municipality.
func GuessAmtsblattURLs(municipalityName, baseURL string) []string {
	urls := []string{}
	if strings.HasPrefix(baseURL, "http://") || strings.HasPrefix(baseURL, "https://") {
		base := strings.TrimRight(baseURL, "/")
		for _, p := range amtsblattPaths {
			urls = append(urls, base+p)
		}
	}
	if m := sanitizeNameDashed(municipalityName); m != "" {
		urls = append(urls,
			"https://"+m+".de/amtsblatt",
			"https://www."+m+".de/amtsblatt",
		)
	}
	return urls
}
