// Package classify decides whether a document describes a battery storage
// planning procedure, tags the procedure, and scores the confidence of the
// decision. The rules are deterministic; there is no model involved.
package classify

import (
	"strings"
	"time"

	"github.com/witto13/BESS-Crawler/bess/go/keywords"
	"github.com/witto13/BESS-Crawler/bess/go/textnorm"
	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/util"
)

// titleDateCutoff is the earliest decision date for which a storage term in
// the title alone makes a document relevant.
var titleDateCutoff = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// Result is the outcome of classifying one document.
type Result struct {
	IsRelevant        bool
	ProcedureType     types.ProcedureType
	LegalBasis        types.LegalBasis
	Components        types.Components
	Confidence        float64
	AmbiguityFlag     bool
	ReviewRecommended bool
	EvidenceSnippets  []string
}

func anyNegative(s string) bool {
	return util.ContainsAny(s, keywords.NegativeStorageTerms) || util.ContainsAny(s, keywords.NegativeUnrelatedTerms)
}

func anyProcedure(s string) bool {
	return util.ContainsAny(s, keywords.PlanningTermsStrong) ||
		util.ContainsAny(s, keywords.PlanningStepTerms) ||
		util.ContainsAny(s, keywords.PermitTermsStrong)
}

func anyExplicitBESS(s string) bool {
	return util.ContainsAny(s, keywords.BESSTermsStrong) || util.ContainsAny(s, keywords.BESSTermsMedium)
}

// IsCandidate is the fast gate that decides whether a document is worth
// classifying at all. It requires a procedure term plus a storage or energy
// signal, and rejects documents whose only storage vocabulary is negative
// (rainwater basins, heat storage, data storage, ...).
func IsCandidate(text, title string) bool {
	combined := textnorm.Normalize(text) + " " + textnorm.Normalize(title)

	hasNegative := anyNegative(combined)
	hasExplicit := anyExplicitBESS(combined)
	if hasNegative && !hasExplicit {
		return false
	}
	if !anyProcedure(combined) {
		return false
	}
	hasSpeicherEnergy := strings.Contains(combined, "speicher") && util.ContainsAny(combined, keywords.EnergyContextTerms)
	hasZoningEnergy := util.ContainsAny(combined, keywords.ZoningTerms) && util.ContainsAny(combined, keywords.EnergyContextTerms)
	return hasExplicit || hasSpeicherEnergy || hasZoningEnergy
}

// Classify runs the full rule set on one document. The date is the best
// known decision or publication date; nil means unknown.
//
// Rules, in order:
//
//	R1: a strong storage term plus a procedure term, without negatives.
//	R2: a storage term in the title, dated 2023 or later. An unknown date
//	    counts as eligible; undated announcements are common and recall
//	    matters more than the cutoff here.
//	R3: ambiguous storage vocabulary rescued by grid context: at least two
//	    container/grid terms plus a concrete procedure step or permit term.
//	    R3 hits are flagged ambiguous.
func Classify(text, title string, date *time.Time) Result {
	normText := textnorm.Normalize(text)
	normTitle := textnorm.Normalize(title)
	combined := normText + " " + normTitle
	// The normalization folds umlauts; also check the plain lowercased
	// original so unfolded negative spellings are not missed.
	originalCombined := strings.ToLower(text + " " + title)

	result := Result{
		LegalBasis: types.LegalBasisUnknown,
		Components: types.ComponentsUnclear,
	}

	hasNegative := anyNegative(combined) || anyNegative(originalCombined)
	hasStrongBESS := util.ContainsAny(combined, keywords.BESSTermsStrong)
	hasMediumBESS := util.ContainsAny(combined, keywords.BESSTermsMedium)
	hasProcedure := anyProcedure(combined)

	if hasNegative && !hasStrongBESS {
		return result
	}

	// R1.
	if hasStrongBESS && hasProcedure && !hasNegative {
		result.IsRelevant = true
	}

	// R2.
	if date == nil || !date.Before(titleDateCutoff) {
		if strings.Contains(normTitle, "batteriespeicher") || strings.Contains(normTitle, "energiespeicher") {
			result.IsRelevant = true
		}
	}

	// R3.
	if !result.IsRelevant && !hasNegative && (strings.Contains(combined, "speicher") || hasMediumBESS) {
		gridTerms := 0
		for _, term := range keywords.ContainerGridTerms {
			if strings.Contains(combined, term) {
				gridTerms++
			}
		}
		hasStepOrPermit := util.ContainsAny(combined, keywords.PlanningStepTerms) || util.ContainsAny(combined, keywords.PermitTermsStrong)
		if gridTerms >= 2 && hasStepOrPermit {
			result.IsRelevant = true
			result.AmbiguityFlag = true
		}
	}

	if !result.IsRelevant {
		return result
	}

	result.ProcedureType = TagProcedureType(combined)
	result.LegalBasis = TagLegalBasis(combined)
	result.Components = TagComponents(combined)
	result.Confidence = confidence(combined, hasStrongBESS, date)

	if !hasStrongBESS {
		result.AmbiguityFlag = true
	}
	if result.Confidence >= 0.35 && result.Confidence <= 0.65 {
		result.ReviewRecommended = true
	}

	result.EvidenceSnippets = evidenceSnippets(text, title, combined)
	return result
}

// TagProcedureType tags the procedural step. Permit types are checked before
// B-Plan types because permit documents routinely also mention the plan.
func TagProcedureType(text string) types.ProcedureType {
	switch {
	case strings.Contains(text, "bauvorbescheid") || strings.Contains(text, "vorbescheid"):
		return types.PermitBauvorbescheid
	case strings.Contains(text, "baugenehmigung"):
		return types.PermitBaugenehmigung
	case strings.Contains(text, "§ 36 baugb") || (strings.Contains(text, "gemeindliches einvernehmen") && strings.Contains(text, "§ 36")):
		return types.Permit36Einvernehmen
	case strings.Contains(text, "bauantrag"),
		strings.Contains(text, "antrag auf") && util.ContainsAny(text, keywords.PermitTermsStrong),
		strings.Contains(text, "bauvoranfrage"),
		strings.Contains(text, "bauvorantrag"),
		strings.Contains(text, "kenntnisnahme") && (strings.Contains(text, "bauantrag") || strings.Contains(text, "vorhaben")),
		strings.Contains(text, "antrag auf errichtung"):
		return types.PermitOther
	}
	switch {
	case strings.Contains(text, "aufstellungsbeschluss"), strings.Contains(text, "beschluss zur aufstellung"), strings.Contains(text, "§ 2 abs. 1 baugb"):
		return types.BPlanAufstellung
	case strings.Contains(text, "§ 3 abs. 1 baugb"), strings.Contains(text, "fruehzeitige beteiligung"), strings.Contains(text, "frühzeitige beteiligung"):
		return types.BPlanFruehzeitig31
	case strings.Contains(text, "§ 3 abs. 2 baugb"), strings.Contains(text, "oeffentliche auslegung"), strings.Contains(text, "öffentliche auslegung"):
		return types.BPlanAuslegung32
	case strings.Contains(text, "satzungsbeschluss"), strings.Contains(text, "§ 10 baugb"), strings.Contains(text, "inkrafttreten"):
		return types.BPlanSatzung
	case util.ContainsAny(text, keywords.PlanningTermsStrong):
		return types.BPlanOther
	}
	return types.ProcedureTypeUnknown
}

// TagLegalBasis tags §35/§34/§36. RIS PDFs often split words mid-token, so
// several broken-whitespace spellings are accepted.
func TagLegalBasis(text string) types.LegalBasis {
	t := strings.NewReplacer("\n", " ", "\t", " ", "  ", " ").Replace(text)
	switch {
	case strings.Contains(t, "§ 35 baugb"), strings.Contains(t, "§35 baugb"),
		strings.Contains(t, "§ 35bau gb"), strings.Contains(t, "§35bau gb"),
		strings.Contains(t, "außenbereich"), strings.Contains(t, "aussenbereich"):
		return types.LegalBasis35
	case strings.Contains(t, "§ 34 baugb"), strings.Contains(t, "§34 baugb"),
		strings.Contains(t, "§ 34bau gb"), strings.Contains(t, "§34bau gb"),
		strings.Contains(t, "innenbereich"):
		return types.LegalBasis34
	case strings.Contains(t, "§ 36 baugb"), strings.Contains(t, "§36 baugb"),
		strings.Contains(t, "§ 36bau gb"), strings.Contains(t, "§36bau gb"):
		return types.LegalBasis36
	}
	return types.LegalBasisUnknown
}

// TagComponents tags what the project combines with the storage system.
func TagComponents(text string) types.Components {
	t := strings.NewReplacer("\n", " ", "\t", " ").Replace(text)

	hasPV := util.ContainsAny(t, []string{"photovoltaik", "pv", "solarpark"})
	hasWind := util.ContainsAny(t, []string{"windenergie", "windpark"})
	hasBESS := anyExplicitBESS(t) || strings.Contains(t, "speicher")

	// A container installation with grid context is a storage system even
	// when never named as one.
	hasGrid := util.ContainsAny(t, []string{"netz", "umspannwerk", "trafostation", "mittelspannung", "hochspannung"})
	if strings.Contains(t, "containeranlage") && hasGrid {
		hasBESS = true
	}
	if strings.Contains(t, "anlage zur energiespeicherung") {
		hasBESS = true
	}

	switch {
	case hasPV && hasBESS:
		return types.ComponentsPVBESS
	case hasWind && hasBESS:
		return types.ComponentsWindBESS
	case hasBESS:
		return types.ComponentsBESSOnly
	}
	return types.ComponentsUnclear
}

// confidenceGridTerms is the subset of grid vocabulary that earns the
// infrastructure bonus.
var confidenceGridTerms = []string{
	"umspannwerk", "netzanschluss", "trafostation", "mittelspannung",
	"hochspannung", "netzverknuepfungspunkt", "netzverknüpfungspunkt",
}

func confidence(text string, hasStrongBESS bool, date *time.Time) float64 {
	score := 0.0

	// Storage explicitness, strongest signal first.
	if util.ContainsAny(text, []string{"batteriespeicher", "energiespeicher", "stromspeicher"}) {
		score += 0.55
	} else if util.ContainsAny(text, []string{"speicheranlage", "grossspeicher", "großspeicher", "speicherpark"}) {
		score += 0.35
	} else if strings.Contains(text, "speicher") && util.ContainsAny(text, keywords.EnergyContextTerms) {
		score += 0.15
	}

	// Procedure strength.
	if util.ContainsAny(text, keywords.PlanningStepTerms) {
		score += 0.25
	}
	if strings.Contains(text, "bauvorbescheid") || strings.Contains(text, "baugenehmigung") {
		score += 0.25
	}
	if strings.Contains(text, "§ 36 baugb") || strings.Contains(text, "gemeindliches einvernehmen") {
		score += 0.20
	}

	if util.ContainsAny(text, confidenceGridTerms) {
		score += 0.10
	}

	// Penalties.
	if util.ContainsAny(text, keywords.NegativeStorageTerms) && !hasStrongBESS {
		return 0.0
	}
	if strings.Contains(text, "speicher") && !util.ContainsAny(text, keywords.ContainerGridTerms) {
		score -= 0.25
	}
	if date == nil {
		score -= 0.15
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

const (
	maxSnippets   = 5
	snippetWindow = 100
	snippetMaxLen = 250
)

// snippetAround returns up to snippetWindow chars of context on either side
// of the first occurrence of term. It prefers the original text; when the
// term only matches after umlaut folding, the normalized text is used so the
// offsets stay consistent.
func snippetAround(original, normalized, term string) string {
	haystack := strings.ToLower(original)
	src := original
	idx := strings.Index(haystack, term)
	if idx < 0 {
		src = normalized
		idx = strings.Index(normalized, term)
	}
	if idx < 0 {
		return ""
	}
	start := idx - snippetWindow
	if start < 0 {
		start = 0
	}
	end := idx + len(term) + snippetWindow
	if end > len(src) {
		end = len(src)
	}
	snippet := strings.TrimSpace(src[start:end])
	if len(snippet) > snippetMaxLen {
		snippet = strings.TrimSpace(snippet[:snippetMaxLen])
	}
	return snippet
}

// evidenceSnippets collects up to maxSnippets short excerpts showing the
// first storage term, the first procedure term, and the first legal basis
// term that matched.
func evidenceSnippets(text, title, normalized string) []string {
	full := text + " " + title
	snippets := []string{}
	seen := map[string]bool{}
	addFirst := func(terms []string) {
		for _, term := range terms {
			if strings.Contains(normalized, term) {
				if s := snippetAround(full, normalized, term); s != "" && !seen[s] {
					seen[s] = true
					snippets = append(snippets, s)
				}
				return
			}
		}
	}
	addFirst(append(append([]string{}, keywords.BESSTermsStrong...), keywords.BESSTermsMedium...))
	addFirst(append(append([]string{}, keywords.PlanningStepTerms...), keywords.PermitTermsStrong...))
	addFirst(keywords.LegalBasisTerms)
	if len(snippets) > maxSnippets {
		snippets = snippets[:maxSnippets]
	}
	return snippets
}
