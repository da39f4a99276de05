package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/witto13/BESS-Crawler/bess/go/types"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestIsCandidate(t *testing.T) {
	require.True(t, IsCandidate("Aufstellungsbeschluss für den Bebauungsplan", "Batteriespeicher Nord"))
	require.True(t, IsCandidate("Öffentliche Auslegung: Sondergebiet Photovoltaik", "B-Plan 7"))
	// Procedure without any storage or energy signal.
	require.False(t, IsCandidate("Aufstellungsbeschluss für den Bebauungsplan Wohngebiet Süd", "B-Plan 3"))
	// Storage without a procedure term.
	require.False(t, IsCandidate("Unser neuer Batteriespeicher", "Pressemitteilung"))
	// Negative-only storage vocabulary.
	require.False(t, IsCandidate("Öffentliche Auslegung: Regenrückhaltebecken am Ortsrand", "B-Plan 9"))
}

func TestClassify_R1_StrongStorageAndProcedure(t *testing.T) {
	text := "Aufstellungsbeschluss für den Bebauungsplan Nr. 7 Sondergebiet Batteriespeicher gemäß § 2 Abs. 1 BauGB"
	res := Classify(text, "B-Plan 7 Batteriespeicher", date(2024, time.March, 12))

	require.True(t, res.IsRelevant)
	require.Equal(t, types.BPlanAufstellung, res.ProcedureType)
	require.False(t, res.AmbiguityFlag)
	require.NotEmpty(t, res.EvidenceSnippets)
}

func TestClassify_R2_TitleStorageTerm(t *testing.T) {
	// An unknown date counts as eligible.
	res := Classify("", "Energiespeicher Testdorf", nil)
	require.True(t, res.IsRelevant)

	res = Classify("", "Energiespeicher Testdorf", date(2024, time.June, 1))
	require.True(t, res.IsRelevant)

	// Before the cutoff the title alone is not enough.
	res = Classify("", "Energiespeicher Testdorf", date(2022, time.June, 1))
	require.False(t, res.IsRelevant)
}

func TestClassify_R3_ContainerGridContext(t *testing.T) {
	text := "Aufstellung einer Containeranlage mit Speichercontainern und Trafostation, öffentliche Auslegung der Unterlagen"
	res := Classify(text, "Containeranlage Gewerbegebiet", date(2024, time.May, 2))

	require.True(t, res.IsRelevant)
	require.True(t, res.AmbiguityFlag)
	// Weak storage signal plus a planning step lands in the review band.
	require.True(t, res.ReviewRecommended)
}

func TestClassify_NegativeStorage(t *testing.T) {
	res := Classify("Öffentliche Auslegung: Bebauungsplan Regenrückhaltebecken", "B-Plan 9", date(2024, time.April, 1))
	require.False(t, res.IsRelevant)
	require.Equal(t, types.LegalBasisUnknown, res.LegalBasis)
	require.Equal(t, types.ComponentsUnclear, res.Components)

	// A strong storage term in the title overrides the negative.
	res = Classify("Das Regenrückhaltebecken bleibt erhalten.", "Öffentliche Auslegung Batteriespeicher", date(2024, time.April, 1))
	require.True(t, res.IsRelevant)
}

func TestTagProcedureType(t *testing.T) {
	test := func(text string, want types.ProcedureType) {
		t.Run(string(want), func(t *testing.T) {
			require.Equal(t, want, TagProcedureType(text))
		})
	}
	// Permit types win over plan types even when both are mentioned.
	test("bauvorbescheid fuer den bebauungsplan nr. 7", types.PermitBauvorbescheid)
	test("baugenehmigung erteilt", types.PermitBaugenehmigung)
	test("gemeindliches einvernehmen gemaess § 36 baugb", types.Permit36Einvernehmen)
	test("bauantrag zur errichtung", types.PermitOther)
	test("aufstellungsbeschluss gefasst", types.BPlanAufstellung)
	test("fruehzeitige beteiligung der oeffentlichkeit", types.BPlanFruehzeitig31)
	test("oeffentliche auslegung des entwurfs", types.BPlanAuslegung32)
	test("satzungsbeschluss nach § 10 baugb", types.BPlanSatzung)
	test("bebauungsplan energiepark", types.BPlanOther)
	test("nichts davon", types.ProcedureTypeUnknown)
}

func TestTagLegalBasis(t *testing.T) {
	require.Equal(t, types.LegalBasis35, TagLegalBasis("vorhaben im aussenbereich nach § 35 baugb"))
	require.Equal(t, types.LegalBasis35, TagLegalBasis("privilegiert im außenbereich"))
	require.Equal(t, types.LegalBasis34, TagLegalBasis("im innenbereich zulaessig"))
	require.Equal(t, types.LegalBasis36, TagLegalBasis("einvernehmen nach § 36 baugb"))
	// PDF extraction splits tokens; the broken spellings still match.
	require.Equal(t, types.LegalBasis35, TagLegalBasis("nach § 35bau gb privilegiert"))
	require.Equal(t, types.LegalBasisUnknown, TagLegalBasis("keine rechtsgrundlage genannt"))
}

func TestTagComponents(t *testing.T) {
	require.Equal(t, types.ComponentsPVBESS, TagComponents("photovoltaik mit batteriespeicher"))
	require.Equal(t, types.ComponentsWindBESS, TagComponents("windpark mit batteriespeicher"))
	require.Equal(t, types.ComponentsBESSOnly, TagComponents("batteriespeicher am umspannwerk"))
	require.Equal(t, types.ComponentsBESSOnly, TagComponents("containeranlage mit netzanschluss"))
	require.Equal(t, types.ComponentsUnclear, TagComponents("wohngebiet am ortsrand"))
}

func TestClassify_Confidence(t *testing.T) {
	// Strong storage term, planning step, grid context, known date:
	// 0.55 + 0.25 + 0.10 = 0.90.
	text := "Aufstellungsbeschluss Batteriespeicher mit Trafostation und Netzanschluss"
	res := Classify(text, "B-Plan Batteriespeicher", date(2024, time.January, 10))
	require.True(t, res.IsRelevant)
	require.InDelta(t, 0.90, res.Confidence, 1e-9)
	require.False(t, res.ReviewRecommended)

	// An unknown date costs 0.15.
	res = Classify(text, "B-Plan Batteriespeicher", nil)
	require.InDelta(t, 0.75, res.Confidence, 1e-9)
}

func TestClassify_EvidenceSnippets(t *testing.T) {
	text := "Die Gemeindevertretung hat den Aufstellungsbeschluss für den Bebauungsplan Sondergebiet Batteriespeicher im Außenbereich nach § 35 BauGB gefasst."
	res := Classify(text, "B-Plan Batteriespeicher", date(2024, time.February, 1))
	require.True(t, res.IsRelevant)
	require.NotEmpty(t, res.EvidenceSnippets)
	require.LessOrEqual(t, len(res.EvidenceSnippets), 5)
	for _, s := range res.EvidenceSnippets {
		require.LessOrEqual(t, len(s), 250)
	}
}
