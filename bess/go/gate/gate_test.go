package gate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witto13/BESS-Crawler/bess/go/classify"
	"github.com/witto13/BESS-Crawler/bess/go/types"
)

func TestIsContainer(t *testing.T) {
	require.True(t, IsContainer("amtsblatt der gemeinde testdorf", "https://testdorf.de/amtsblatt"))
	require.True(t, IsContainer("ausgabe 12", "https://testdorf.de/blatt"))
	require.True(t, IsContainer("bekanntmachungsblatt nr. 7", "https://testdorf.de/blatt"))

	// A named procedure is never a container, even inside a gazette.
	require.False(t, IsContainer("amtsblatt nr. 12: aufstellungsbeschluss bebauungsplan", "https://testdorf.de/amtsblatt"))
	// Container vocabulary without an issue number or gazette name.
	require.False(t, IsContainer("bekanntmachung zur sitzung", "https://testdorf.de/news"))
	require.False(t, IsContainer("bebauungsplan nr. 7", "https://testdorf.de/bplan"))
}

func TestValidProcedure_ContainerRejected(t *testing.T) {
	ok, reason := ValidProcedure("amtsblatt ausgabe 3", "https://testdorf.de/amtsblatt", types.SourceAmtsblatt, nil, "inhaltsverzeichnis und impressum")
	require.False(t, ok)
	require.Equal(t, SkipContainer, reason)
}

func TestValidProcedure_ContainerWithProcedureContent(t *testing.T) {
	// A gazette issue whose text names a concrete procedure passes.
	ok, reason := ValidProcedure("amtsblatt ausgabe 3", "https://testdorf.de/amtsblatt", types.SourceAmtsblatt, nil, "aufstellungsbeschluss fuer den bebauungsplan nr. 7")
	require.True(t, ok)
	require.Empty(t, reason)
}

func TestValidProcedure_RelevantWithStorageSignal(t *testing.T) {
	res := &classify.Result{IsRelevant: true}
	ok, reason := ValidProcedure("b-plan 7 energiepark", "https://testdorf.de/bplan7", types.SourceMunicipal, res, "sondergebiet batteriespeicher")
	require.True(t, ok)
	require.Empty(t, reason)
}

func TestValidProcedure_ProcedureTypeAlone(t *testing.T) {
	res := &classify.Result{ProcedureType: types.BPlanAufstellung}
	ok, _ := ValidProcedure("b-plan 7", "https://testdorf.de/bplan7", types.SourceMunicipal, res, "")
	require.True(t, ok)

	// An UNKNOWN procedure type is no signal.
	res = &classify.Result{ProcedureType: types.ProcedureTypeUnknown}
	ok, reason := ValidProcedure("seite ohne inhalt", "https://testdorf.de/x", types.SourceMunicipal, res, "")
	require.False(t, ok)
	require.Equal(t, SkipNoProcedureSignal, reason)
}

func TestValidProcedure_PrivilegedRISAgenda(t *testing.T) {
	// Agenda lines rarely name the procedure step; privileged phrasing is
	// enough for RIS items.
	ok, _ := ValidProcedure("stellungnahme zum vorhaben speicherpark", "https://ris.testdorf.de/to0040.asp", types.SourceRIS, nil, "")
	require.True(t, ok)

	// The same phrasing on a municipal page is not.
	ok, reason := ValidProcedure("stellungnahme zum vorhaben speicherpark", "https://testdorf.de/news", types.SourceMunicipal, nil, "")
	require.False(t, ok)
	require.Equal(t, SkipNoProcedureSignal, reason)
}
