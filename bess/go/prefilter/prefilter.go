// Package prefilter scores candidates from their title and URL alone, so
// that extraction jobs are only enqueued for pages worth downloading.
package prefilter

import (
	"strings"

	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/util"
)

// Mode selects how aggressively the pipeline downloads and extracts.
type Mode string

const (
	ModeFast Mode = "fast"
	ModeDeep Mode = "deep"
)

var (
	strongBESSTerms = []string{
		"batteriespeicher",
		"batterie-speicher",
		"energiespeicher",
		"stromspeicher",
		"grossspeicher",
		"großspeicher",
	}

	solarTerms = []string{"photovoltaik", "pv", "solarpark", "solaranlage", "solar"}

	procedureTerms = []string{
		"aufstellungsbeschluss",
		"öffentliche auslegung",
		"oeffentliche auslegung",
		"satzungsbeschluss",
		"bauvorbescheid",
		"baugenehmigung",
		"§ 36",
		"§36",
		"einvernehmen",
	}

	urlProcedureTerms = []string{
		"bauleitplanung",
		"bebauungsplan",
		"amtsblatt",
		"ris",
		"sessionnet",
	}

	containerTerms = []string{
		"amtsblatt",
		"sonderamtsblatt",
		"bekanntmachungsblatt",
		"ausgabe",
		"nummer",
		"nr.",
	}
)

// Score computes the prefilter score in [0,1] from title, URL, and an
// optional HTML snippet.
//
// Additive rules: +0.6 strong storage term in the title, +0.4 solar term in
// the title, +0.3 procedure signal in the title, +0.2 procedure-related URL.
// Container-looking titles without a procedure signal lose 0.7; gazette
// issue pages score low unless a concrete procedure is named.
func Score(title, url, htmlSnippet string) float64 {
	score := 0.0
	titleLower := strings.ToLower(title)
	urlLower := strings.ToLower(url)

	if util.ContainsAny(titleLower, strongBESSTerms) {
		score += 0.6
	}
	if util.ContainsAny(titleLower, solarTerms) {
		score += 0.4
	}
	hasProcedureSignal := util.ContainsAny(titleLower, procedureTerms)
	if hasProcedureSignal {
		score += 0.3
	}
	if util.ContainsAny(urlLower, urlProcedureTerms) {
		score += 0.2
	}
	if util.ContainsAny(titleLower, containerTerms) && !hasProcedureSignal {
		score -= 0.7
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ShouldExtract decides whether a candidate with the given score is worth an
// extraction job. Thresholds are source-aware: RIS agenda items get a low
// threshold because the storage vocabulary is usually in the attachments,
// gazette issues a medium one, and municipal website pages a strict one.
func ShouldExtract(score float64, source types.SourceType, mode Mode) bool {
	switch source {
	case types.SourceRIS:
		if mode == ModeDeep {
			return score >= 0.2
		}
		return score >= 0.35
	case types.SourceAmtsblatt:
		if mode == ModeDeep {
			return score >= 0.3
		}
		return score >= 0.5
	default:
		if mode == ModeDeep {
			return score >= 0.5
		}
		return score >= 0.6
	}
}
