package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witto13/BESS-Crawler/bess/go/types"
)

func TestPlanToken(t *testing.T) {
	require.Equal(t, "7", PlanToken("Bebauungsplan Nr. 7 der Gemeinde Testdorf", ""))
	require.Equal(t, "12a", PlanToken("B-Plan 12a Energiepark", ""))
	require.Equal(t, "7", PlanToken("Öffentliche Auslegung", "zum Bebauungsplan Nr. 7"))
	// Quoted plan names are a fallback when they look plan-like.
	require.Equal(t, "plangebiet sued", PlanToken(`Vorhaben "Plangebiet Sued"`, ""))
	require.Equal(t, "", PlanToken("Sitzung der Gemeindevertretung", ""))
}

func TestParcelToken(t *testing.T) {
	require.Equal(t, "gemarkung=schwedt;flur=3;flurstueck=12", ParcelToken("Gemarkung: Schwedt; Flur: 3; Flurstück: 12"))
	require.Equal(t, "flur=4", ParcelToken("Flur 4"))
	require.Equal(t, "", ParcelToken(""))
	require.Equal(t, "", ParcelToken("Hauptstrasse 1"))
}

func TestNormalizeCompany(t *testing.T) {
	require.Equal(t, "energiepark nord", NormalizeCompany("Energiepark Nord GmbH"))
	require.Equal(t, "energiepark nord", NormalizeCompany("Energiepark  Nord GmbH & Co. KG"))
	require.Equal(t, "energiepark nord", NormalizeCompany("energiepark nord"))
	require.Equal(t, "", NormalizeCompany(""))
}

func TestTitleSignature(t *testing.T) {
	require.Equal(t, "des bebauungsplans energiepark nord", TitleSignature("Öffentliche Auslegung des Bebauungsplans Energiepark Nord"))
	// Stopwords drop out, short tokens drop out.
	require.Equal(t, "speicher ortsrand", TitleSignature("Der Speicher am Ortsrand"))
	require.Equal(t, "", TitleSignature(""))
}

func TestJaccardSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, JaccardSimilarity(nil, nil), 1e-9)
	require.InDelta(t, 0.0, JaccardSimilarity([]string{"a"}, nil), 1e-9)
	require.InDelta(t, 1.0, JaccardSimilarity([]string{"a", "b"}, []string{"b", "a"}), 1e-9)
	require.InDelta(t, 1.0/3.0, JaccardSimilarity([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
}

func TestFindMatch_Precedence(t *testing.T) {
	byParcel := &types.ProjectEntity{CanonicalName: "B-Plan 9", SiteLocationBest: "gemarkung=schwedt;flur=3;flurstueck=12"}
	byPlan := &types.ProjectEntity{CanonicalName: "B-Plan 7"}
	existing := []*types.ProjectEntity{byPlan, byParcel}

	// Parcel beats plan token.
	sig := Signature{ParcelToken: "gemarkung=schwedt;flur=3", PlanToken: "7"}
	m := FindMatch(sig, existing)
	require.NotNil(t, m)
	require.Equal(t, MatchParcel, m.Rule)
	require.Same(t, byParcel, m.Project)
	require.InDelta(t, 0.95, m.Score, 1e-9)

	// Plan token next.
	sig = Signature{PlanToken: "7"}
	m = FindMatch(sig, existing)
	require.NotNil(t, m)
	require.Equal(t, MatchPlanToken, m.Rule)
	require.Same(t, byPlan, m.Project)
}

func TestFindMatch_DevTitle(t *testing.T) {
	pe := &types.ProjectEntity{
		CanonicalName: "Energiepark Nord Speicher",
		DeveloperBest: "Energiepark Nord GmbH",
	}
	sig := Signature{
		DeveloperToken: "energiepark nord",
		TitleSignature: TitleSignature("Energiepark Nord Speicher"),
	}
	m := FindMatch(sig, []*types.ProjectEntity{pe})
	require.NotNil(t, m)
	require.Equal(t, MatchDevTitle, m.Rule)
	require.InDelta(t, 0.80, m.Score, 1e-9)

	// Same developer but a disjoint title does not match.
	sig.TitleSignature = TitleSignature("Umspannwerk Westareal Erweiterung")
	require.Nil(t, FindMatch(sig, []*types.ProjectEntity{pe}))
}

func TestFindMatch_TitleSimilarity(t *testing.T) {
	pe := &types.ProjectEntity{CanonicalName: "Batteriespeicher Gewerbegebiet Ost"}
	sig := Signature{TitleSignature: TitleSignature("Batteriespeicher Gewerbegebiet Ost Erweiterung")}
	m := FindMatch(sig, []*types.ProjectEntity{pe})
	require.NotNil(t, m)
	require.Equal(t, MatchTitle, m.Rule)
	require.InDelta(t, 0.75, m.Score, 1e-9)

	require.Nil(t, FindMatch(Signature{TitleSignature: "voellig anderes vorhaben"}, []*types.ProjectEntity{pe}))
}

func TestNewProjectLink(t *testing.T) {
	rule, score := NewProjectLink(types.BPlanAufstellung)
	require.Equal(t, MatchNew, rule)
	require.InDelta(t, 1.0, score, 1e-9)

	// A § 36 consent is often the first public trace of a project.
	rule, score = NewProjectLink(types.Permit36Einvernehmen)
	require.Equal(t, MatchPermit36, rule)
	require.InDelta(t, 0.85, score, 1e-9)
}

func TestMaturityStage(t *testing.T) {
	require.Equal(t, types.MaturityDiscovered, MaturityStage(nil))
	require.Equal(t, types.MaturityDiscovered, MaturityStage([]types.ProcedureType{types.ProcedureTypeUnknown}))
	require.Equal(t, types.MaturityBPlanAufstellung, MaturityStage([]types.ProcedureType{types.BPlanAufstellung}))
	// The most mature stage wins.
	require.Equal(t, types.MaturityBaugenehmigung, MaturityStage([]types.ProcedureType{
		types.BPlanAufstellung, types.PermitBaugenehmigung, types.BPlanSatzung,
	}))
	require.Equal(t, types.MaturityPermit36, MaturityStage([]types.ProcedureType{
		types.BPlanAuslegung32, types.Permit36Einvernehmen,
	}))
}

func TestMoreMature(t *testing.T) {
	require.Equal(t, types.MaturityBPlanSatzung, MoreMature(types.MaturityBPlanSatzung, types.MaturityBPlanAufstellung))
	require.Equal(t, types.MaturityBPlanSatzung, MoreMature(types.MaturityBPlanAufstellung, types.MaturityBPlanSatzung))
	require.Equal(t, types.MaturityBaugenehmigung, MoreMature(types.MaturityDiscovered, types.MaturityBaugenehmigung))
	require.Equal(t, types.MaturityDiscovered, MoreMature("", types.MaturityDiscovered))
}
