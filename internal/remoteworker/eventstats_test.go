package remoteworker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventStatsTrackerNoMismatchWhenCountsAgree(t *testing.T) {
	tr := NewEventStatsTracker()
	tr.Record(1)
	tr.Record(1)
	tr.Record(2)

	mismatches := tr.Reconcile(map[uint32]uint64{1: 2, 2: 1})
	assert.Empty(t, mismatches)
}

func TestEventStatsTrackerDetectsUnderReporting(t *testing.T) {
	tr := NewEventStatsTracker()
	tr.Record(1)
	tr.Record(1)
	tr.Record(1)

	mismatches := tr.Reconcile(map[uint32]uint64{1: 2})
	require := assert.New(t)
	require.Len(mismatches, 1)
	require.Equal(uint32(1), mismatches[0].EventID)
	require.Equal(uint64(3), mismatches[0].Observed)
	require.Equal(uint64(2), mismatches[0].Reported)
}

func TestEventStatsTrackerDetectsReportedButNeverObserved(t *testing.T) {
	tr := NewEventStatsTracker()
	mismatches := tr.Reconcile(map[uint32]uint64{9: 5})
	require := assert.New(t)
	require.Len(mismatches, 1)
	require.Equal(uint32(9), mismatches[0].EventID)
	require.Equal(uint64(0), mismatches[0].Observed)
	require.Equal(uint64(5), mismatches[0].Reported)
}
