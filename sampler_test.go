package flowmon

import (
	"testing"

	"github.com/iti/evt/evtm"
	"github.com/stretchr/testify/require"
)

func testPlatform(t *testing.T, numNodes int) *NetPlatform {
	t.Helper()
	cfg := DefaultExperimentCfg()
	cfg.Name = t.Name()
	cfg.NumNodes = numNodes
	return createNetPlatform(cfg, CreateTraceManager(cfg.Name, false))
}

func TestSamplerRejectsEpochShorterThanLead(t *testing.T) {
	np := testPlatform(t, 3)
	_, err := ScheduleQueueSampler(evtm.New(), np, 0.5)

	var se *SchedulingError
	require.ErrorAs(t, err, &se)
}

func TestSamplerCoversEveryEndpoint(t *testing.T) {
	np := testPlatform(t, 4)
	evtMgr := evtm.New()

	qs, err := ScheduleQueueSampler(evtMgr, np, 2.0)
	require.NoError(t, err)
	require.Equal(t, 0, qs.Len())

	// idle network: the snapshot fires at epoch-1 and sees empty queues
	evtMgr.Run(2.0)
	require.Equal(t, 4, qs.Len())
	for _, devID := range np.EndptIDs() {
		depth, present := qs.Depth(devID)
		require.True(t, present, "device %d missing from snapshot", devID)
		require.Equal(t, 0, depth)
	}
}

func TestCheckConnectionsOnBuiltPlatform(t *testing.T) {
	np := testPlatform(t, 5)
	require.NoError(t, CheckConnections(np))
}
