package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witto13/BESS-Crawler/bess/go/config"
	"github.com/witto13/BESS-Crawler/bess/go/fetch"
	"github.com/witto13/BESS-Crawler/bess/go/prefilter"
	"github.com/witto13/BESS-Crawler/go/mockhttpclient"
)

func testClient(m *mockhttpclient.URLMock) *fetch.Client {
	cfg := config.New()
	cfg.CrawlMode = string(prefilter.ModeDeep)
	cfg.Retries = 1
	cfg.PageCacheBase = ""
	return fetch.NewForTesting(cfg, m.Client())
}

func TestDiscoverRIS_PatternGuessing(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://ris.testdorf.de", []byte(`<html><body>Sitzungen des Gemeinderats</body></html>`))
	client := testClient(m)

	risURL, diag := DiscoverRIS(context.Background(), client, "Testdorf", "", "")
	require.Equal(t, "https://ris.testdorf.de", risURL)
	require.Equal(t, ReasonFound, diag.ReasonCode)
	require.Equal(t, "pattern_guessing", diag.Method)
	// The sessionnet guess comes first and fails before the hit.
	require.NotEmpty(t, diag.FailedURLs)
}

func TestDiscoverRIS_NoSeedURL(t *testing.T) {
	client := testClient(mockhttpclient.NewURLMock())

	risURL, diag := DiscoverRIS(context.Background(), client, "", "", "")
	require.Empty(t, risURL)
	require.Equal(t, ReasonNoSeedURL, diag.ReasonCode)
}

func TestDiscoverRIS_NoMarkers(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	// Responds, but the page is not a RIS.
	m.Mock("https://ris.testdorf.de", []byte(`<html><body>Herzlich willkommen</body></html>`))
	client := testClient(m)

	risURL, diag := DiscoverRIS(context.Background(), client, "Testdorf", "", "")
	require.Empty(t, risURL)
	require.Equal(t, ReasonNoMarkersFound, diag.ReasonCode)
	require.Equal(t, "no RIS markers", diag.FailedURLs["https://ris.testdorf.de"])
}

func TestDiscoverRIS_SiteDriven(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://www.testdorf.de", []byte(`<html><body>
		<a href="https://sessionnet.testdorf.de/si0100.asp">Ratsinformationssystem</a>
	</body></html>`))
	m.Mock("https://sessionnet.testdorf.de/si0100.asp", []byte(`<html><body>Tagesordnung der Sitzung</body></html>`))
	client := testClient(m)

	risURL, diag := DiscoverRIS(context.Background(), client, "Testdorf", "", "https://www.testdorf.de")
	require.Equal(t, "https://sessionnet.testdorf.de/si0100.asp", risURL)
	require.Equal(t, "site_driven", diag.Method)
	require.Equal(t, ReasonFound, diag.ReasonCode)
}

func TestDiscoverSiteLinks(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://www.testdorf.de", []byte(`<html><body>
		<a href="https://testdorf.allris.de/">Ratsinfo</a>
		<a href="/amtsblatt">Amtsblatt der Gemeinde</a>
		<a href="/aktuelles/item-7">Öffentliche Auslegung</a>
		<a href="/tourismus">Sehenswertes</a>
	</body></html>`))
	client := testClient(m)

	links := DiscoverSiteLinks(context.Background(), client, "https://www.testdorf.de", 10, 1)
	require.Equal(t, []string{"https://testdorf.allris.de/"}, links.RISURLs)
	require.Equal(t, []string{"https://www.testdorf.de/amtsblatt"}, links.AmtsblattURLs)
	require.Contains(t, links.BekanntmachungURLs, "https://www.testdorf.de/aktuelles/item-7")
}

func TestDiscoverSiteLinks_InvalidURL(t *testing.T) {
	client := testClient(mockhttpclient.NewURLMock())
	links := DiscoverSiteLinks(context.Background(), client, "testdorf.de", 10, 1)
	require.Empty(t, links.RISURLs)
	require.Empty(t, links.AmtsblattURLs)
}

func TestDiscoverCommittees(t *testing.T) {
	m := mockhttpclient.NewURLMock()
	m.Mock("https://ris.testdorf.de/si0100.asp", []byte(`<html><body>
		<a href="to0040.asp?GRA=1">Bauausschuss</a>
		<a href="to0040.asp?GRA=2">Seniorenbeirat</a>
	</body></html>`))
	client := testClient(m)

	committees := DiscoverCommittees(context.Background(), client, "https://ris.testdorf.de/si0100.asp")
	require.Len(t, committees, 1)
	require.Equal(t, "Bauausschuss", committees[0].Name)
	require.Equal(t, "https://ris.testdorf.de/to0040.asp?GRA=1", committees[0].URL)
}

func TestProbeFailureReason(t *testing.T) {
	require.Equal(t, ReasonNoSeedURL, probeFailureReason(nil, map[string]string{}))
	require.Equal(t, ReasonAllURLs404, probeFailureReason([]string{"a"}, map[string]string{"a": "Not Found"}))
	require.Equal(t, ReasonSSLBlocked, probeFailureReason([]string{"a"}, map[string]string{"a": "x509: certificate signed by unknown authority"}))
	require.Equal(t, ReasonNoMarkersFound, probeFailureReason([]string{"a"}, map[string]string{"a": "no RIS markers"}))
}
