package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "schoeneiche", SanitizeName("Schöneiche (bei Berlin)"))
	require.Equal(t, "badbelzig", SanitizeName("Bad Belzig"))
	require.Equal(t, "muehlenbecker-land", SanitizeName("Mühlenbecker-Land"))
	require.Equal(t, "", SanitizeName("(nur Klammern)"))
}

func TestSanitizeNameDashed(t *testing.T) {
	require.Equal(t, "bad-belzig", sanitizeNameDashed("Bad Belzig"))
	require.Equal(t, "schoeneiche", sanitizeNameDashed("Schöneiche (bei Berlin)"))
	require.Equal(t, "gross-kreutz", sanitizeNameDashed("Groß  Kreutz"))
}

func TestIsRISLink(t *testing.T) {
	require.True(t, IsRISLink("https://testdorf.allris.de/si0100.asp", ""))
	require.True(t, IsRISLink("https://www.testdorf.de/sessionnet/", ""))
	require.True(t, IsRISLink("https://ris.testdorf.de/", ""))
	require.True(t, IsRISLink("https://www.testdorf.de/politik", "Ratsinformationssystem"))
	require.True(t, IsRISLink("https://www.testdorf.de/x", "Sitzungen und Gremien"))
	require.False(t, IsRISLink("https://www.testdorf.de/tourismus", "Sehenswertes"))
}

func TestIsAmtsblattLink(t *testing.T) {
	require.True(t, IsAmtsblattLink("https://www.testdorf.de/amtsblatt", ""))
	require.True(t, IsAmtsblattLink("https://www.testdorf.de/bekanntmachungen", ""))
	require.True(t, IsAmtsblattLink("https://www.testdorf.de/x", "Amtliche Bekanntmachung"))
	require.False(t, IsAmtsblattLink("https://www.testdorf.de/kita", "Anmeldung"))
}

func TestGuessRISURLs(t *testing.T) {
	urls := GuessRISURLs("Testdorf", "https://www.testdorf.de/")
	require.Contains(t, urls, "https://testdorf.sessionnet.de")
	require.Contains(t, urls, "https://ris.testdorf.de")
	require.Contains(t, urls, "https://www.testdorf.de/sessionnet")
	require.Contains(t, urls, "https://www.testdorf.de/si0100.asp")

	// Hostname patterns come before path guesses.
	require.Equal(t, "https://testdorf.sessionnet.de", urls[0])

	// Without a base URL only the hostname patterns remain.
	urls = GuessRISURLs("Testdorf", "")
	require.Len(t, urls, 4)

	require.Empty(t, GuessRISURLs("", ""))
}

func TestGuessAmtsblattURLs(t *testing.T) {
	urls := GuessAmtsblattURLs("Bad Belzig", "https://www.bad-belzig.de")
	require.Contains(t, urls, "https://www.bad-belzig.de/amtsblatt")
	require.Contains(t, urls, "https://www.bad-belzig.de/bekanntmachungen")
	require.Contains(t, urls, "https://bad-belzig.de/amtsblatt")
	require.Contains(t, urls, "https://www.bad-belzig.de/amtsblatt")
}

func TestMunicipalPaths(t *testing.T) {
	urls := MunicipalPaths("https://www.testdorf.de/")
	require.Contains(t, urls, "https://www.testdorf.de/bekanntmachungen")
	require.Contains(t, urls, "https://www.testdorf.de/bauleitplanung")
	for _, u := range urls {
		require.NotContains(t, u, "//bekanntmachungen")
	}
}
