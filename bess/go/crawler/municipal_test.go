package crawler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/mockhttpclient"
)

func TestDiscoverSections_Spider(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://www.testdorf.de", []byte(`<html><body>
		<a href="/bauleitplanung">Bauleitplanung</a>
		<a href="/kita">Kita-Anmeldung</a>
		<a href="https://extern.example.de/bauen">Externes Portal</a>
	</body></html>`))
	m.Mock("https://www.testdorf.de/bauleitplanung", []byte(`<html><body>Bauleitplanung</body></html>`))
	mu := NewMunicipal(testClient(m))

	sections := mu.DiscoverSections(context.Background(), "https://www.testdorf.de/")
	require.Equal(t, []string{"https://www.testdorf.de/bauleitplanung"}, sections)
}

func TestDiscoverSections_PathFallback(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	// Homepage without any planning links; the predefined paths take over.
	m.Mock("https://www.testdorf.de", []byte(`<html><body>Herzlich willkommen</body></html>`))
	m.Mock("https://www.testdorf.de/bekanntmachungen", []byte(`<html><body>Bekanntmachungen</body></html>`))
	mu := NewMunicipal(testClient(m))

	sections := mu.DiscoverSections(context.Background(), "https://www.testdorf.de")
	require.Equal(t, []string{"https://www.testdorf.de/bekanntmachungen"}, sections)
}

func TestCrawlSection(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://www.testdorf.de/bauleitplanung", []byte(`<html><body>
		<a href="bplan-7.pdf">Bebauungsplan Nr. 7</a>
		<a href="https://www.testdorf.de/allris/vorlage">Auslegung im Ratsinfo</a>
		<a href="/kita">Kita</a>
	</body></html>`))
	mu := NewMunicipal(testClient(m))

	items := mu.CrawlSection(context.Background(), "https://www.testdorf.de/bauleitplanung")
	require.Len(t, items, 1)
	require.Equal(t, "https://www.testdorf.de/bplan-7.pdf", items[0].URL)
	require.Equal(t, "Bebauungsplan Nr. 7", items[0].Title)
	require.Equal(t, types.SourceMunicipal, items[0].SourceType)
	require.Equal(t, "https://www.testdorf.de/bauleitplanung", items[0].DiscoveryPath)
}

func TestFetchProcedurePage(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://www.testdorf.de/bplan-7", []byte(`<html><head><title>Testdorf</title></head><body>
		<h1>Bebauungsplan Nr. 7 Batteriespeicher</h1>
		<a href="begruendung.pdf">Begründung</a>
		<a href="plan.docx">Planzeichnung</a>
		<a href="/kontakt">Kontakt</a>
	</body></html>`))
	mu := NewMunicipal(testClient(m))

	page, err := mu.FetchProcedurePage(context.Background(), "https://www.testdorf.de/bplan-7")
	require.NoError(t, err)
	require.Equal(t, "Bebauungsplan Nr. 7 Batteriespeicher", page.Title)
	require.Len(t, page.Documents, 2)
	require.Equal(t, "https://www.testdorf.de/begruendung.pdf", page.Documents[0].URL)
	require.Equal(t, "https://www.testdorf.de/plan.docx", page.Documents[1].URL)
}

func TestFetchProcedurePage_NotFound(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.MockStatus("https://www.testdorf.de/weg", http.StatusNotFound, nil)
	mu := NewMunicipal(testClient(m))

	page, err := mu.FetchProcedurePage(context.Background(), "https://www.testdorf.de/weg")
	require.NoError(t, err)
	require.Equal(t, "https://www.testdorf.de/weg", page.URL)
	require.Empty(t, page.Title)
	require.Empty(t, page.Documents)
}
