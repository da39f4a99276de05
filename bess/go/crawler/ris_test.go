package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/witto13/BESS-Crawler/bess/go/config"
	"github.com/witto13/BESS-Crawler/bess/go/fetch"
	"github.com/witto13/BESS-Crawler/bess/go/prefilter"
	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/mockhttpclient"
)

func testClient(m *mockhttpclient.URLMock) *fetch.Client {
	cfg := config.New()
	cfg.CrawlMode = string(prefilter.ModeDeep)
	cfg.Retries = 1
	cfg.PageCacheBase = ""
	return fetch.NewForTesting(cfg, m.Client())
}

func TestParseSessionDate(t *testing.T) {
	d := parseSessionDate("Sitzung am 12.03.2024")
	require.NotNil(t, d)
	require.Equal(t, time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC), *d)

	d = parseSessionDate("Sitzung 2024-03-12")
	require.NotNil(t, d)
	require.Equal(t, time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC), *d)

	require.Nil(t, parseSessionDate("Sitzung ohne Datum"))
	require.Nil(t, parseSessionDate("Sitzung am 31.02.2024"))
}

func TestListProcedures_CommitteeFlow(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	// RIS entry page, found by pattern guessing.
	m.Mock("https://ris.teststadt.de", []byte(`<html><body>Sitzungen und Gremien</body></html>`))
	// Committee list.
	m.Mock("https://ris.teststadt.de/si0100.asp", []byte(`<html><body>
		<a href="committee1.asp">Bauausschuss</a>
	</body></html>`))
	// Session list: one recent session, then three old ones in a row. The
	// old sessions stop the pagination before their items are fetched.
	m.Mock("https://ris.teststadt.de/committee1.asp", []byte(`<html><body>
		<a href="session1.asp">Sitzung am 12.03.2024</a>
		<a href="session2.asp">Sitzung am 10.11.2021</a>
		<a href="session3.asp">Sitzung am 15.06.2021</a>
		<a href="session4.asp">Sitzung am 02.02.2021</a>
	</body></html>`))
	// Agenda of the recent session.
	m.Mock("https://ris.teststadt.de/session1.asp", []byte(`<html><body>
		<a href="vorlage1.asp">Bauantrag Batteriespeicher Gemarkung Nord</a>
		<a href="vorlage2.asp">Haushaltssatzung 2024</a>
	</body></html>`))
	r := NewRIS(testClient(m))

	items, diag := r.ListProcedures(context.Background(), "Teststadt", "", "")
	require.Equal(t, "FOUND", diag.ReasonCode)
	require.Len(t, items, 1)
	require.Equal(t, "Bauantrag Batteriespeicher Gemarkung Nord", items[0].Title)
	require.Equal(t, "https://ris.teststadt.de/vorlage1.asp", items[0].URL)
	require.Equal(t, types.SourceRIS, items[0].SourceType)
	require.Equal(t, "https://ris.teststadt.de/session1.asp", items[0].DiscoveryPath)
	require.NotNil(t, items[0].Date)
	require.Equal(t, time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC), *items[0].Date)
}

func TestListProcedures_FallbackScrape(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	// The entry page responds but never identifies as a RIS, so discovery
	// fails and the fallback scrapes the SessionNet entry points directly.
	m.Mock("https://www.teststadt.de/si0100.asp", []byte(`<html><body>
		<a href="si0200.asp?id=1">Vorlage Energiespeicher Gewerbegebiet</a>
		<a href="impressum.html">Impressum</a>
	</body></html>`))
	r := NewRIS(testClient(m))

	items, _ := r.ListProcedures(context.Background(), "Teststadt", "https://www.teststadt.de", "")
	require.Len(t, items, 1)
	require.Equal(t, "https://www.teststadt.de/si0200.asp?id=1", items[0].URL)
	require.Equal(t, "Vorlage Energiespeicher Gewerbegebiet", items[0].Title)
}

func TestFetchAgendaItem(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://ris.teststadt.de/vorlage1.asp", []byte(`<html><head><title>Bauantrag Batteriespeicher</title></head><body>
		<a href="anlage1.pdf">Anlage 1</a>
		<a href="anlage1.pdf">Anlage 1 (Duplikat)</a>
		<a href="lageplan.docx">Lageplan</a>
		<a href="weiter.html">weiter</a>
	</body></html>`))
	r := NewRIS(testClient(m))

	item, err := r.FetchAgendaItem(context.Background(), "https://ris.teststadt.de/vorlage1.asp")
	require.NoError(t, err)
	require.Equal(t, "Bauantrag Batteriespeicher", item.Title)
	require.Len(t, item.Documents, 2)
	require.Equal(t, "https://ris.teststadt.de/anlage1.pdf", item.Documents[0].URL)
	require.Equal(t, "https://ris.teststadt.de/lageplan.docx", item.Documents[1].URL)
}
