package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witto13/BESS-Crawler/bess/go/classify"
	"github.com/witto13/BESS-Crawler/bess/go/config"
	"github.com/witto13/BESS-Crawler/bess/go/store"
	"github.com/witto13/BESS-Crawler/bess/go/types"
)

func TestClassifyFailure(t *testing.T) {
	test := func(msg string, expectStatus types.JobStatus, expectKind string) {
		t.Run(msg, func(t *testing.T) {
			status, kind := classifyFailure(errors.New(msg))
			require.Equal(t, expectStatus, status)
			require.Equal(t, expectKind, kind)
		})
	}
	test("x509: certificate signed by unknown authority", types.JobErrorSSL, "ssl")
	test("remote error: tls: handshake failure", types.JobErrorSSL, "ssl")
	test("context deadline exceeded", types.JobErrorNetwork, "network")
	test("dial tcp: lookup ris.testdorf.de: no such host", types.JobErrorNetwork, "network")
	test("connection refused", types.JobErrorNetwork, "network")
	test("parsing PDF failed", types.JobErrorOther, "other")
}

func TestIsPDFURL(t *testing.T) {
	require.True(t, isPDFURL("https://www.testdorf.de/amtsblatt-12.pdf"))
	require.True(t, isPDFURL("https://www.testdorf.de/Anlage.PDF"))
	require.True(t, isPDFURL("https://www.testdorf.de/datei.pdf?download=1"))
	require.False(t, isPDFURL("https://www.testdorf.de/seite.html"))
	require.False(t, isPDFURL("https://www.testdorf.de/pdf-archiv"))
	require.False(t, isPDFURL("://kaputt"))
}

func TestDocumentURLs(t *testing.T) {
	body := []byte(`<html><body>
		<a href="begruendung.pdf">Begründung</a>
		<a href="/dokumente/plan.docx">Planzeichnung</a>
		<a href="begruendung.pdf">Begründung (nochmal)</a>
		<a href="gutachten.doc">Gutachten</a>
		<a href="/kontakt">Kontakt</a>
	</body></html>`)

	urls := documentURLs(body, "https://www.testdorf.de/bplan-7/")
	require.Equal(t, []string{
		"https://www.testdorf.de/bplan-7/begruendung.pdf",
		"https://www.testdorf.de/dokumente/plan.docx",
		"https://www.testdorf.de/bplan-7/gutachten.doc",
	}, urls)

	require.Empty(t, documentURLs([]byte("<html><body>kein Anhang</body></html>"), "https://www.testdorf.de"))
}

func TestBuildProcedure_StableID(t *testing.T) {
	// The queue delivers at least once; a re-run of the same extraction job
	// must produce the same procedure ID so the upsert updates the existing
	// row.
	w := &Worker{cfg: config.New()}
	cand := &types.Candidate{
		ID:              42,
		MunicipalityKey: "12065084",
		SourceType:      types.SourceRIS,
		URL:             "https://ris.testdorf.de/vo0050.asp?__kvonr=7",
		Title:           "Aufstellungsbeschluss Batteriespeicher",
	}
	result := &classify.Result{ProcedureType: types.BPlanAufstellung, Confidence: 0.9}

	p1 := w.buildProcedure(context.Background(), cand, result, "Batteriespeicher")
	p2 := w.buildProcedure(context.Background(), cand, result, "Batteriespeicher")
	require.Equal(t, p1.ID, p2.ID)

	// A different candidate gets a different ID.
	other := *cand
	other.ID = 43
	p3 := w.buildProcedure(context.Background(), &other, result, "Batteriespeicher")
	require.NotEqual(t, p1.ID, p3.ID)
}

func TestNewProjectID_Stable(t *testing.T) {
	cand := &types.Candidate{ID: 42, MunicipalityKey: "12065084"}
	id1 := newProjectID(procedureIDFor(cand))
	id2 := newProjectID(procedureIDFor(cand))
	require.Equal(t, id1, id2)

	other := &types.Candidate{ID: 43, MunicipalityKey: "12065084"}
	require.NotEqual(t, id1, newProjectID(procedureIDFor(other)))
}

func TestSummaryLine(t *testing.T) {
	partial := []store.SourceSummary{
		{SourceType: types.SourceRIS, JobStatus: types.JobDone},
		{SourceType: types.SourceAmtsblatt, JobStatus: types.JobDone},
	}
	// No line until all three source families have reported.
	require.Equal(t, "", summaryLine("Testdorf", "12065084", partial))

	complete := append(partial,
		store.SourceSummary{SourceType: types.SourceMunicipal, JobStatus: types.JobErrorSSL},
		store.SourceSummary{SourceType: "extraction", JobStatus: types.JobDone, ProceduresSaved: 2},
		store.SourceSummary{SourceType: "extraction", JobStatus: types.JobDone, ProceduresSaved: 1},
	)
	line := summaryLine("Testdorf", "12065084", complete)
	require.Contains(t, line, "MUNICIPALITY_SUMMARY: Testdorf (12065084)")
	require.Contains(t, line, "Municipal=ERROR_SSL")
	require.Contains(t, line, "Procedures=3")
}
