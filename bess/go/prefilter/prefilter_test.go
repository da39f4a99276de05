package prefilter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witto13/BESS-Crawler/bess/go/types"
)

func TestScore(t *testing.T) {
	test := func(name, title, url string, want float64) {
		t.Run(name, func(t *testing.T) {
			require.InDelta(t, want, Score(title, url, ""), 1e-9)
		})
	}
	test("strong storage term", "Batteriespeicher Nord", "https://example.de/page", 0.6)
	test("solar term", "Solarpark Süd", "https://example.de/page", 0.4)
	test("procedure signal", "Aufstellungsbeschluss zum Vorhaben", "https://example.de/page", 0.3)
	test("procedure url only", "Unauffälliger Titel", "https://example.de/bauleitplanung/7", 0.2)
	test("storage plus procedure", "Öffentliche Auslegung Batteriespeicher", "https://example.de/page", 0.9)
	test("clamped at one", "Öffentliche Auslegung Batteriespeicher Photovoltaik", "https://example.de/bebauungsplan/7", 1.0)
	test("container without procedure", "Amtsblatt Ausgabe 12", "https://example.de/page", 0.0)
	test("container with procedure keeps score", "Amtsblatt: Aufstellungsbeschluss B-Plan 7", "https://example.de/page", 0.3)
	test("nothing", "Protokoll der Jahreshauptversammlung", "https://example.de/verein", 0.0)
}

func TestShouldExtract(t *testing.T) {
	// RIS items get the lowest bar: agenda lines rarely carry the storage
	// vocabulary themselves.
	require.True(t, ShouldExtract(0.35, types.SourceRIS, ModeFast))
	require.False(t, ShouldExtract(0.34, types.SourceRIS, ModeFast))
	require.True(t, ShouldExtract(0.2, types.SourceRIS, ModeDeep))
	require.False(t, ShouldExtract(0.19, types.SourceRIS, ModeDeep))

	require.True(t, ShouldExtract(0.5, types.SourceAmtsblatt, ModeFast))
	require.False(t, ShouldExtract(0.49, types.SourceAmtsblatt, ModeFast))
	require.True(t, ShouldExtract(0.3, types.SourceAmtsblatt, ModeDeep))

	require.True(t, ShouldExtract(0.6, types.SourceMunicipal, ModeFast))
	require.False(t, ShouldExtract(0.59, types.SourceMunicipal, ModeFast))
	require.True(t, ShouldExtract(0.5, types.SourceMunicipal, ModeDeep))
	require.False(t, ShouldExtract(0.49, types.SourceMunicipal, ModeDeep))
}
