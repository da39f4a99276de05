package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witto13/BESS-Crawler/bess/go/types"
)

func TestEntrypointFor(t *testing.T) {
	m := &types.Municipality{
		Name:            "Testdorf",
		OfficialWebsite: "https://www.testdorf.de",
		RISURL:          "https://ris.testdorf.de",
		AmtsblattURL:    "https://www.testdorf.de/amtsblatt",
	}
	require.Equal(t, "https://ris.testdorf.de", entrypointFor(types.SourceRIS, m))
	require.Equal(t, "https://www.testdorf.de/amtsblatt", entrypointFor(types.SourceAmtsblatt, m))
	require.Equal(t, "https://www.testdorf.de", entrypointFor(types.SourceMunicipal, m))

	// Without a known website the municipal entrypoint is guessed from the
	// name.
	m.OfficialWebsite = ""
	require.Equal(t, "https://www.testdorf.de", entrypointFor(types.SourceMunicipal, m))

	m.Name = ""
	require.Equal(t, "", entrypointFor(types.SourceMunicipal, m))

	// A RIS job without a known RIS URL falls back to discovery.
	m.RISURL = ""
	require.Equal(t, "", entrypointFor(types.SourceRIS, m))
}
