package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witto13/BESS-Crawler/bess/go/discovery"
	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/mockhttpclient"
)

func TestAmtsblattDiscover(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://www.testdorf.de/amtsblatt", []byte(`<html><body>Amtsblatt der Gemeinde Testdorf</body></html>`))
	a := NewAmtsblatt(testClient(m))

	url, diag := a.Discover(context.Background(), "Testdorf", "https://www.testdorf.de", "")
	require.Equal(t, "https://www.testdorf.de/amtsblatt", url)
	require.Equal(t, discovery.ReasonFound, diag.ReasonCode)
	require.Equal(t, "pattern_guessing", diag.Method)
}

func TestAmtsblattDiscover_NoMarkers(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://www.testdorf.de/amtsblatt", []byte(`<html><body>Herzlich willkommen</body></html>`))
	a := NewAmtsblatt(testClient(m))

	url, diag := a.Discover(context.Background(), "Testdorf", "https://www.testdorf.de", "")
	require.Empty(t, url)
	require.Equal(t, discovery.ReasonNoMarkersFound, diag.ReasonCode)
}

func TestListIssues(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://www.testdorf.de/amtsblatt", []byte(`<html><body>
		<a href="ausgabe-12-2024.html">Ausgabe 12/2024</a>
		<a href="kontakt.html">Kontakt</a>
	</body></html>`))
	a := NewAmtsblatt(testClient(m))

	issues := a.ListIssues(context.Background(), "https://www.testdorf.de/amtsblatt")
	require.Len(t, issues, 1)
	require.Equal(t, "https://www.testdorf.de/ausgabe-12-2024.html", issues[0].URL)
	require.Equal(t, "Ausgabe 12/2024", issues[0].Title)
	require.Equal(t, types.SourceAmtsblatt, issues[0].SourceType)
}

func TestExtractIssueProcedures_PDFAttachments(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://www.testdorf.de/ausgabe-12.html", []byte(`<html><body>
		<p>Aufstellungsbeschluss für den Bebauungsplan Nr. 7</p>
		<a href="amtsblatt-12.pdf">Amtsblatt 12/2024</a>
		<a href="titelbild.jpg">Titelbild</a>
	</body></html>`))
	a := NewAmtsblatt(testClient(m))

	items := a.ExtractIssueProcedures(context.Background(), "https://www.testdorf.de/ausgabe-12.html")
	require.Len(t, items, 1)
	require.Equal(t, "https://www.testdorf.de/amtsblatt-12.pdf", items[0].URL)
	require.Equal(t, "Amtsblatt 12/2024", items[0].Title)
	require.Equal(t, "https://www.testdorf.de/ausgabe-12.html", items[0].DiscoveryPath)
}

func TestExtractIssueProcedures_NoKeywords(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://www.testdorf.de/ausgabe-13.html", []byte(`<html><body>
		<p>Termine des Sportvereins</p>
		<a href="amtsblatt-13.pdf">Amtsblatt 13/2024</a>
	</body></html>`))
	a := NewAmtsblatt(testClient(m))

	require.Empty(t, a.ExtractIssueProcedures(context.Background(), "https://www.testdorf.de/ausgabe-13.html"))
}

func TestExtractIssueProcedures_IssuePageFallback(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://www.testdorf.de/ausgabe-14.html", []byte(`<html><head><title>Amtsblatt 14/2024</title></head><body>
		<p>Bekanntmachung: Satzungsbeschluss zum Bebauungsplan Nr. 9</p>
	</body></html>`))
	a := NewAmtsblatt(testClient(m))

	items := a.ExtractIssueProcedures(context.Background(), "https://www.testdorf.de/ausgabe-14.html")
	require.Len(t, items, 1)
	require.Equal(t, "https://www.testdorf.de/ausgabe-14.html", items[0].URL)
	require.Equal(t, "Amtsblatt 14/2024", items[0].Title)
}
