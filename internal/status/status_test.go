package status

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarReporterTracksCount(t *testing.T) {
	var buf bytes.Buffer
	r := NewBarReporter(&buf, time.Millisecond)

	r.SetTotal(2)
	r.ObjectProcessed()
	r.ObjectProcessed()
	require.NoError(t, r.Close())

	br, ok := r.(*barReporter)
	require.True(t, ok)
	assert.EqualValues(t, 2, br.count)
}

func TestNoopReporterDiscardsEverything(t *testing.T) {
	r := NewNoop()
	r.SetTotal(100)
	r.ObjectProcessed()
	r.SetPhase("collecting")
	assert.NoError(t, r.Close())
}

func TestPrintSummaryReportsFaultReason(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, Summary{Phase: "run", ObjectCount: 3, Faulted: true, FaultReason: "boom"})
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "faulted")
}

func TestPrintSummaryReportsSuccess(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, Summary{Phase: "run", ObjectCount: 5, Duration: 2 * time.Second})
	assert.Contains(t, buf.String(), "5 objects")
}
