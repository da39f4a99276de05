// Package resolve maps procedures to project entities. Every procedure gets
// a structured signature (plan token, parcel token, developer token, title
// signature) which is matched against the existing projects of the same
// municipality.
package resolve

import (
	"regexp"
	"strings"

	"github.com/witto13/BESS-Crawler/bess/go/types"
)

// Link reasons, in descending match precedence.
const (
	MatchParcel    = "PARCEL_MATCH"
	MatchPlanToken = "PLAN_TOKEN_MATCH"
	MatchDevTitle  = "DEV+TITLE_MATCH"
	MatchTitle     = "TITLE_MATCH"
	MatchNew       = "NEW_PROJECT"
	MatchPermit36  = "PERMIT_36_NEW"
)

// Link confidences per reason.
const (
	scoreParcel    = 0.95
	scorePlanToken = 0.90
	scoreDevTitle  = 0.80
	scoreNew       = 1.0
	scorePermit36  = 0.85

	titleSimilarityThreshold = 0.5
)

var (
	planTokenRe  = regexp.MustCompile(`(?i)b(?:ebauungs)?-?plan\s*(?:nr\.?|nummer)?\s*([a-z0-9\-/]+)`)
	quotedNameRe = regexp.MustCompile(`[„“”"']([^„“”"']{5,50})[„“”"']`)

	gemarkungRe  = regexp.MustCompile(`gemarkung\s*:?\s*([a-zäöüß][a-zäöüß\s-]*)`)
	flurRe       = regexp.MustCompile(`flur\s*:?\s*(\d+)`)
	flurstueckRe = regexp.MustCompile(`flurst(?:ue|ü)ck\s*:?\s*(\d+[a-z]?)`)

	companySuffixRe = regexp.MustCompile(`(?i)\s+(gmbh & co\. kg|gmbh|ag|ug|kg|gbr|e\.v\.|e\.k\.|ohg)\s*$`)
	titleTokenRe    = regexp.MustCompile(`\b[a-zäöüß]{3,}\b`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// titleStopPhrases are procedural boilerplate removed before tokenizing a
// title into its signature.
var titleStopPhrases = []string{
	"zur beteiligung",
	"öffentliche auslegung",
	"oeffentliche auslegung",
	"zur aufstellung",
	"bekanntmachung",
	"verfahren",
	"beschluss",
	"sitzung",
	"tagesordnung",
}

var titleStopwords = map[string]bool{
	"und": true, "der": true, "die": true, "das": true, "für": true,
	"von": true, "mit": true, "auf": true, "dem": true, "den": true,
	"fuer": true,
}

// Signature is the structured identity of a procedure used for matching.
type Signature struct {
	PlanToken      string
	ParcelToken    string
	DeveloperToken string
	TitleSignature string
}

// PlanToken extracts a plan number or name from the title and supporting
// text. "Bebauungsplan Nr. 7" yields "7"; a quoted plan name is used as a
// fallback when it looks plan-like.
func PlanToken(title, text string) string {
	combined := strings.ToLower(title + " " + text)
	if m := planTokenRe.FindStringSubmatch(combined); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := quotedNameRe.FindStringSubmatch(combined); m != nil {
		candidate := strings.TrimSpace(m[1])
		lower := strings.ToLower(candidate)
		for _, term := range []string{"plan", "gebiet", "bereich", "vorhaben"} {
			if strings.Contains(lower, term) {
				return candidate
			}
		}
	}
	return ""
}

// ParcelToken builds a normalized parcel key like
// "gemarkung=schwedt;flur=3;flurstueck=12" from a raw site location string.
func ParcelToken(siteLocation string) string {
	if siteLocation == "" {
		return ""
	}
	lower := strings.ToLower(siteLocation)
	parts := []string{}
	if m := gemarkungRe.FindStringSubmatch(lower); m != nil {
		parts = append(parts, "gemarkung="+strings.TrimSpace(m[1]))
	}
	if m := flurRe.FindStringSubmatch(lower); m != nil {
		parts = append(parts, "flur="+m[1])
	}
	if m := flurstueckRe.FindStringSubmatch(lower); m != nil {
		parts = append(parts, "flurstueck="+m[1])
	}
	return strings.Join(parts, ";")
}

// NormalizeCompany strips legal-form suffixes and normalizes whitespace and
// case, so "Energiepark Nord GmbH" and "energiepark nord" compare equal.
func NormalizeCompany(company string) string {
	if company == "" {
		return ""
	}
	normalized := companySuffixRe.ReplaceAllString(company, "")
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")
	return strings.ToLower(strings.TrimSpace(normalized))
}

// TitleSignature reduces a title to up to ten informative tokens with
// procedural stop phrases and stopwords removed.
func TitleSignature(title string) string {
	normalized := strings.ToLower(title)
	for _, phrase := range titleStopPhrases {
		normalized = strings.ReplaceAll(normalized, phrase, " ")
	}
	tokens := []string{}
	for _, t := range titleTokenRe.FindAllString(normalized, -1) {
		if !titleStopwords[t] {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) > 10 {
		tokens = tokens[:10]
	}
	return strings.Join(tokens, " ")
}

// ComputeSignature builds a procedure's signature. Evidence snippets (up to
// three) supplement the title for plan token extraction, since the plan
// number is often only in the body text.
func ComputeSignature(p *types.Procedure) Signature {
	text := p.Title
	snippets := p.EvidenceSnippets
	if len(snippets) > 3 {
		snippets = snippets[:3]
	}
	if len(snippets) > 0 {
		text += " " + strings.Join(snippets, " ")
	}
	return Signature{
		PlanToken:      PlanToken(p.Title, text),
		ParcelToken:    ParcelToken(p.Location),
		DeveloperToken: NormalizeCompany(p.Developer),
		TitleSignature: TitleSignature(p.Title),
	}
}

// JaccardSimilarity compares two token sets. Two empty sets count as
// identical.
func JaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	setA := map[string]bool{}
	for _, t := range a {
		setA[t] = true
	}
	setB := map[string]bool{}
	intersection := 0
	for _, t := range b {
		if setB[t] {
			continue
		}
		setB[t] = true
		if setA[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// Match is a resolved link to an existing or new project.
type Match struct {
	Project *types.ProjectEntity
	Rule    string
	Score   float64
}

// FindMatch tries the match levels in descending precedence against the
// municipality's existing projects and returns the first hit, or nil.
func FindMatch(sig Signature, existing []*types.ProjectEntity) *Match {
	if sig.ParcelToken != "" {
		for _, pe := range existing {
			if pe.SiteLocationBest != "" && strings.Contains(strings.ToLower(pe.SiteLocationBest), sig.ParcelToken) {
				return &Match{Project: pe, Rule: MatchParcel, Score: scoreParcel}
			}
		}
	}
	if sig.PlanToken != "" {
		for _, pe := range existing {
			name := strings.ToLower(pe.CanonicalName)
			if name != "" && (strings.Contains(name, sig.PlanToken) || name == sig.PlanToken) {
				return &Match{Project: pe, Rule: MatchPlanToken, Score: scorePlanToken}
			}
		}
	}
	if sig.DeveloperToken != "" && sig.TitleSignature != "" {
		for _, pe := range existing {
			if pe.DeveloperBest == "" {
				continue
			}
			if NormalizeCompany(pe.DeveloperBest) != sig.DeveloperToken {
				continue
			}
			existingSig := TitleSignature(pe.CanonicalName)
			sim := JaccardSimilarity(strings.Fields(sig.TitleSignature), strings.Fields(existingSig))
			if sim >= titleSimilarityThreshold || existingSig == "" {
				return &Match{Project: pe, Rule: MatchDevTitle, Score: scoreDevTitle}
			}
		}
	}
	for _, pe := range existing {
		existingSig := TitleSignature(pe.CanonicalName)
		if sig.TitleSignature == "" || existingSig == "" {
			continue
		}
		sim := JaccardSimilarity(strings.Fields(sig.TitleSignature), strings.Fields(existingSig))
		if sim >= titleSimilarityThreshold {
			return &Match{Project: pe, Rule: MatchTitle, Score: sim}
		}
	}
	return nil
}

// NewProjectLink returns the link reason and score for a procedure that
// matched no existing project. § 36 Einvernehmen items get a distinct
// reason, since a municipal consent is often the first public trace of an
// outside-area project.
func NewProjectLink(procedureType types.ProcedureType) (string, float64) {
	if procedureType == types.Permit36Einvernehmen {
		return MatchPermit36, scorePermit36
	}
	return MatchNew, scoreNew
}

// maturityByProcedureType maps procedure types to the maturity stage they
// imply for the project.
var maturityByProcedureType = map[types.ProcedureType]types.MaturityStage{
	types.PermitBaugenehmigung: types.MaturityBaugenehmigung,
	types.PermitBauvorbescheid: types.MaturityBauvorbescheid,
	types.Permit36Einvernehmen: types.MaturityPermit36,
	types.BPlanSatzung:         types.MaturityBPlanSatzung,
	types.BPlanAuslegung32:     types.MaturityBPlanAuslegung,
	types.BPlanFruehzeitig31:   types.MaturityBPlanAufstellung,
	types.BPlanAufstellung:     types.MaturityBPlanAufstellung,
}

// maturityPrecedence orders stages from most to least mature.
var maturityPrecedence = []types.MaturityStage{
	types.MaturityBaugenehmigung,
	types.MaturityBauvorbescheid,
	types.MaturityPermit36,
	types.MaturityBPlanSatzung,
	types.MaturityBPlanAuslegung,
	types.MaturityBPlanAufstellung,
}

// MaturityStage computes a project's maturity from the procedure types of
// its linked procedures. The most mature stage seen wins; with no
// recognized stage the project stays DISCOVERED.
func MaturityStage(procedureTypes []types.ProcedureType) types.MaturityStage {
	seen := map[types.MaturityStage]bool{}
	for _, pt := range procedureTypes {
		if stage, ok := maturityByProcedureType[pt]; ok {
			seen[stage] = true
		}
	}
	for _, stage := range maturityPrecedence {
		if seen[stage] {
			return stage
		}
	}
	return types.MaturityDiscovered
}

// MoreMature returns the more mature of two stages. A project's stage only
// ever moves forward, so callers merging a recomputed stage into an existing
// one go through this.
func MoreMature(a, b types.MaturityStage) types.MaturityStage {
	for _, stage := range maturityPrecedence {
		if a == stage || b == stage {
			return stage
		}
	}
	if a != "" {
		return a
	}
	return b
}
