// Package rollup aggregates the procedures linked to a project entity into
// its best-field view: canonical name, site, developer, capacities, legal
// basis, date range, and review state.
package rollup

import (
	"strings"
	"time"

	"github.com/witto13/BESS-Crawler/bess/go/resolve"
	"github.com/witto13/BESS-Crawler/bess/go/types"
)

var planNameTerms = []string{"bebauungsplan", "b-plan", "plan"}

// CanonicalName picks the project name: "B-Plan <token>" when a plan token
// is known, otherwise the longest plan-related title, otherwise the longest
// title.
func CanonicalName(sig resolve.Signature, procedures []*types.Procedure) string {
	if sig.PlanToken != "" {
		return "B-Plan " + sig.PlanToken
	}
	longest := ""
	longestPlan := ""
	for _, p := range procedures {
		if p.Title == "" {
			continue
		}
		if len(p.Title) > len(longest) {
			longest = p.Title
		}
		lower := strings.ToLower(p.Title)
		for _, term := range planNameTerms {
			if strings.Contains(lower, term) {
				if len(p.Title) > len(longestPlan) {
					longestPlan = p.Title
				}
				break
			}
		}
	}
	if longestPlan != "" {
		return longestPlan
	}
	return longest
}

// SiteLocation prefers the parcel token, else the longest raw location.
func SiteLocation(sig resolve.Signature, procedures []*types.Procedure) string {
	if sig.ParcelToken != "" {
		return sig.ParcelToken
	}
	longest := ""
	for _, p := range procedures {
		if len(p.Location) > len(longest) {
			longest = p.Location
		}
	}
	return longest
}

// Developer returns the most frequent non-empty developer name. Ties go to
// the one seen first.
func Developer(procedures []*types.Procedure) string {
	counts := map[string]int{}
	order := []string{}
	for _, p := range procedures {
		if p.Developer == "" {
			continue
		}
		if counts[p.Developer] == 0 {
			order = append(order, p.Developer)
		}
		counts[p.Developer]++
	}
	best := ""
	bestCount := 0
	for _, dev := range order {
		if counts[dev] > bestCount {
			best = dev
			bestCount = counts[dev]
		}
	}
	return best
}

func maxFloat(procedures []*types.Procedure, get func(*types.Procedure) *float64) *float64 {
	var best *float64
	for _, p := range procedures {
		v := get(p)
		if v == nil {
			continue
		}
		if best == nil || *v > *best {
			val := *v
			best = &val
		}
	}
	return best
}

// legalBasisPrecedence: an outside-area § 35 finding is the strongest
// evidence for a standalone storage site, then § 34, then § 36.
var legalBasisPrecedence = []types.LegalBasis{
	types.LegalBasis35,
	types.LegalBasis34,
	types.LegalBasis36,
}

// LegalBasis picks the strongest legal basis seen across procedures.
func LegalBasis(procedures []*types.Procedure) types.LegalBasis {
	seen := map[types.LegalBasis]bool{}
	first := types.LegalBasis("")
	for _, p := range procedures {
		if p.LegalBasis == "" || p.LegalBasis == types.LegalBasisUnknown {
			continue
		}
		if first == "" {
			first = p.LegalBasis
		}
		seen[p.LegalBasis] = true
	}
	for _, lb := range legalBasisPrecedence {
		if seen[lb] {
			return lb
		}
	}
	if first != "" {
		return first
	}
	return types.LegalBasisUnknown
}

// DateRange computes the first and last seen dates from decision dates,
// falling back to creation timestamps.
func DateRange(procedures []*types.Procedure) (time.Time, time.Time) {
	var first, last time.Time
	for _, p := range procedures {
		d := p.CreatedAt
		if p.DecisionDate != nil {
			d = *p.DecisionDate
		}
		if d.IsZero() {
			continue
		}
		if first.IsZero() || d.Before(first) {
			first = d
		}
		if last.IsZero() || d.After(last) {
			last = d
		}
	}
	return first, last
}

// Confidence returns the max confidence across procedures and whether any
// of them was flagged for review.
func Confidence(procedures []*types.Procedure) (float64, bool) {
	maxConf := 0.0
	needsReview := false
	for _, p := range procedures {
		if p.Confidence > maxConf {
			maxConf = p.Confidence
		}
		if p.ReviewRecommended {
			needsReview = true
		}
	}
	return maxConf, needsReview
}

// Apply recomputes all best fields of the project from its linked
// procedures and the signature of the latest one.
func Apply(pe *types.ProjectEntity, sig resolve.Signature, procedures []*types.Procedure) {
	pe.CanonicalName = CanonicalName(sig, procedures)
	if sig.PlanToken != "" {
		pe.PlanToken = sig.PlanToken
	}
	pe.SiteLocationBest = SiteLocation(sig, procedures)
	pe.DeveloperBest = Developer(procedures)
	pe.CapacityMWBest = maxFloat(procedures, func(p *types.Procedure) *float64 { return p.CapacityMW })
	pe.CapacityMWHBest = maxFloat(procedures, func(p *types.Procedure) *float64 { return p.CapacityMWH })
	pe.AreaHABest = maxFloat(procedures, func(p *types.Procedure) *float64 { return p.AreaHA })
	pe.LegalBasisBest = LegalBasis(procedures)

	procedureTypes := make([]types.ProcedureType, 0, len(procedures))
	for _, p := range procedures {
		procedureTypes = append(procedureTypes, p.ProcedureType)
	}
	pe.MaturityStage = resolve.MoreMature(pe.MaturityStage, resolve.MaturityStage(procedureTypes))

	first, last := DateRange(procedures)
	if !first.IsZero() {
		pe.FirstSeen = first
	}
	if !last.IsZero() {
		pe.LastSeen = last
	}
	pe.MaxConfidence, pe.NeedsReview = Confidence(procedures)
}
