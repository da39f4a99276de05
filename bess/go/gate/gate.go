// Package gate decides whether a classified item is a real planning or
// permitting procedure, or a container page (a gazette issue, an agenda
// index) that merely wraps them. Containers must not be persisted as
// procedures.
package gate

import (
	"regexp"
	"strings"

	"github.com/witto13/BESS-Crawler/bess/go/classify"
	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/util"
)

// Skip reasons recorded on candidates the gate rejects.
const (
	SkipContainer         = "SKIP_CONTAINER"
	SkipNoProcedureSignal = "SKIP_NO_PROCEDURE_SIGNAL"
)

var (
	containerKeywords = []string{
		"amtsblatt",
		"sonderamtsblatt",
		"bekanntmachungsblatt",
		"bekanntmachung",
		"veröffentlichung",
		"veroeffentlichung",
		"ausgabe",
		"nummer",
		"nr.",
		"jahrgang",
	}

	procedureKeywords = []string{
		"bebauungsplan",
		"b-plan",
		"bauleitplanung",
		"aufstellungsbeschluss",
		"satzungsbeschluss",
		"öffentliche auslegung",
		"oeffentliche auslegung",
		"bauvorbescheid",
		"baugenehmigung",
		"einvernehmen",
		"§ 35",
		"§ 34",
		"§ 36",
		"batteriespeicher",
		"energiespeicher",
		"speicheranlage",
	}

	// procedureSignals is the wider set consulted when a container-looking
	// title still mentions concrete procedure content.
	procedureSignals = []string{
		"bebauungsplan",
		"b-plan",
		"bauleitplanung",
		"aufstellungsbeschluss",
		"satzungsbeschluss",
		"öffentliche auslegung",
		"oeffentliche auslegung",
		"auslegung",
		"bauvorbescheid",
		"baugenehmigung",
		"einvernehmen",
		"§ 35",
		"§ 34",
		"§ 36",
		"bauantrag",
		"bauvoranfrage",
		"stellungnahme",
	}

	bessSignals = []string{
		"batteriespeicher",
		"energiespeicher",
		"stromspeicher",
		"speicheranlage",
		"speicherpark",
		"containeranlage",
		"anlage zur energiespeicherung",
	}

	gridSignals = []string{
		"umspannwerk",
		"netzanschluss",
		"trafostation",
		"mittelspannung",
		"hochspannung",
		"110 kv",
		"220 kv",
	}

	// privilegedRISTerms cover council-agenda phrasing that signals a real
	// project even when the classifier found no procedure type. RIS items
	// get this relaxation because the procedure vocabulary is usually in
	// the attachments, not the agenda line.
	privilegedRISTerms = []string{
		"einvernehmen",
		"stellungnahme",
		"bauantrag",
		"bauvoranfrage",
		"vorhaben",
		"kenntnisnahme",
		"antrag auf errichtung",
	}

	issueNumberRe = regexp.MustCompile(`\b(ausgabe|nummer|nr\.)\s*\d+`)
)

// IsContainer reports whether title and URL look like a container issue
// (an Amtsblatt issue page, a numbered gazette) rather than an individual
// procedure item.
func IsContainer(titleNorm, url string) bool {
	combined := strings.ToLower(titleNorm + " " + url)
	if !util.ContainsAny(combined, containerKeywords) {
		return false
	}
	if util.ContainsAny(combined, procedureKeywords) {
		return false
	}
	if issueNumberRe.MatchString(combined) {
		return true
	}
	return strings.Contains(combined, "amtsblatt")
}

// hasProcedureSignal reports whether the classifier result carries a real
// procedure signal: a non-unknown procedure type, optionally backed by
// evidence snippets.
func hasProcedureSignal(res *classify.Result) bool {
	if res == nil {
		return false
	}
	if res.ProcedureType == "" || res.ProcedureType == types.ProcedureTypeUnknown {
		return false
	}
	// A procedure type without snippets can come from title-only
	// classification and still counts.
	return true
}

// ValidProcedure decides whether the item should be persisted as a
// procedure. Returns ok and, when not ok, one of the Skip* reasons.
//
// The gate is deliberately permissive for RIS items with privileged agenda
// phrasing, since agenda lines rarely name the procedure step.
func ValidProcedure(titleNorm, url string, source types.SourceType, res *classify.Result, extractedText string) (bool, string) {
	combined := strings.ToLower(titleNorm + " " + extractedText)

	if IsContainer(titleNorm, url) {
		if util.ContainsAny(combined, procedureSignals) || hasProcedureSignal(res) {
			return true, ""
		}
		return false, SkipContainer
	}

	if res != nil {
		hasBESS := util.ContainsAny(combined, bessSignals)
		hasGrid := util.ContainsAny(combined, gridSignals)
		if res.IsRelevant && (hasBESS || (hasGrid && strings.Contains(combined, "speicher"))) {
			return true, ""
		}
		if source == types.SourceRIS && util.ContainsAny(combined, privilegedRISTerms) {
			return true, ""
		}
	}

	if hasProcedureSignal(res) {
		return true, ""
	}
	if source == types.SourceRIS && util.ContainsAny(combined, privilegedRISTerms) {
		return true, ""
	}
	return false, SkipNoProcedureSignal
}
