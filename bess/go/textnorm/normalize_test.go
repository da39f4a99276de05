package textnorm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFoldUmlauts(t *testing.T) {
	require.Equal(t, "Schoeneiche", FoldUmlauts("Schöneiche"))
	require.Equal(t, "Strasse", FoldUmlauts("Straße"))
	require.Equal(t, "AeOeUe aeoeue", FoldUmlauts("ÄÖÜ äöü"))
	require.Equal(t, "no umlauts", FoldUmlauts("no umlauts"))
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "oeffentliche auslegung", Normalize("  Öffentliche\n\nAuslegung  "))
	require.Equal(t, "strasse ueber", Normalize("Straße\tÜber"))
	require.Equal(t, "", Normalize("   "))
	require.Equal(t, "bebauungsplan nr. 7", Normalize("Bebauungsplan   Nr. 7"))
}

func TestHTMLToText(t *testing.T) {
	text, err := HTMLToText(`<html><body><h1>Titel</h1><p>Absatz</p><script>var x = 1;</script></body></html>`)
	require.NoError(t, err)
	require.Equal(t, "Titel\n\nAbsatz", text)
}

func TestHTMLToText_DropsStyleAndNoscript(t *testing.T) {
	text, err := HTMLToText(`<html><head><style>.a{color:red}</style></head><body><noscript>enable js</noscript><p>Inhalt</p></body></html>`)
	require.NoError(t, err)
	require.NotContains(t, text, "color")
	require.NotContains(t, text, "enable js")
	require.Contains(t, text, "Inhalt")
}

func TestHTMLTitle(t *testing.T) {
	require.Equal(t, "Amtsblatt Nr. 12", HTMLTitle(`<html><head><title> Amtsblatt Nr. 12 </title></head><body></body></html>`))
	require.Equal(t, "", HTMLTitle(`<html><body><p>no title</p></body></html>`))
}

func TestTextCache_RoundTrip(t *testing.T) {
	cache := NewTextCache(t.TempDir())

	_, ok := cache.Get("https://example.de/doc.pdf", 100)
	require.False(t, ok)

	require.NoError(t, cache.Put("https://example.de/doc.pdf", 100, "Aufstellungsbeschluss Batteriespeicher"))
	text, ok := cache.Get("https://example.de/doc.pdf", 100)
	require.True(t, ok)
	require.Equal(t, "Aufstellungsbeschluss Batteriespeicher", text)

	// A different size means a re-published PDF and must miss.
	_, ok = cache.Get("https://example.de/doc.pdf", 101)
	require.False(t, ok)
}
