package queue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witto13/BESS-Crawler/bess/go/types"
)

func TestDecodePayload(t *testing.T) {
	// A nonzero candidate_id marks an extraction job.
	job, err := decodePayload([]byte(`{"run_id":"r1","candidate_id":42,"municipality_key":"12345"}`))
	require.NoError(t, err)
	require.Nil(t, job.Discovery)
	require.NotNil(t, job.Extraction)
	require.Equal(t, int64(42), job.Extraction.CandidateID)
	require.Equal(t, "r1", job.Extraction.RunID)

	// Everything else decodes as a discovery job.
	job, err = decodePayload([]byte(`{"run_id":"r1","municipality_key":"12345","municipality_name":"Testdorf","source_type":"ris"}`))
	require.NoError(t, err)
	require.Nil(t, job.Extraction)
	require.NotNil(t, job.Discovery)
	require.Equal(t, types.SourceRIS, job.Discovery.SourceType)
	require.Equal(t, "Testdorf", job.Discovery.MunicipalityName)

	_, err = decodePayload([]byte(`not json`))
	require.Error(t, err)
}
