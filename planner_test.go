package flowmon

import (
	"fmt"
	"testing"

	"github.com/iti/rngstream"
	"github.com/stretchr/testify/require"
)

func seqIDs(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func TestFlowPlanNeverSelfPairs(t *testing.T) {
	for _, numNodes := range []int{2, 3, 5, 16, 64} {
		for trial := 0; trial < 25; trial++ {
			rng := rngstream.New(fmt.Sprintf("plan-%d-%d", numNodes, trial))
			plan, err := BuildFlowPlan(seqIDs(numNodes), 40, 9000, rng)
			require.NoError(t, err)
			require.Len(t, plan, 40)

			for _, fa := range plan {
				require.NotEqual(t, fa.SrcID, fa.DstID,
					"flow %d pairs node %d with itself (%d nodes, trial %d)",
					fa.FlowID, fa.SrcID, numNodes, trial)
				require.GreaterOrEqual(t, fa.SrcID, 0)
				require.Less(t, fa.SrcID, numNodes)
				require.GreaterOrEqual(t, fa.DstID, 0)
				require.Less(t, fa.DstID, numNodes)
			}
		}
	}
}

func TestFlowPlanRejectsSingleNode(t *testing.T) {
	rng := rngstream.New("plan-single")
	_, err := BuildFlowPlan(seqIDs(1), 5, 9000, rng)

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "numnodes", ce.Field)
}

func TestFlowPlanPortsPairwiseDistinct(t *testing.T) {
	rng := rngstream.New("plan-ports")
	const numFlows = 200
	const basePort = 9000

	plan, err := BuildFlowPlan(seqIDs(4), numFlows, basePort, rng)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, fa := range plan {
		require.False(t, seen[fa.Port], "port %d assigned twice", fa.Port)
		seen[fa.Port] = true
		require.GreaterOrEqual(t, fa.Port, basePort)
		require.Less(t, fa.Port, basePort+numFlows)
	}
}

func TestFlowPlanZeroFlowsIsNoOp(t *testing.T) {
	rng := rngstream.New("plan-empty")
	plan, err := BuildFlowPlan(seqIDs(3), 0, 9000, rng)
	require.NoError(t, err)
	require.Empty(t, plan)
}

func TestFlowPlanRejectsNegativeFlowCount(t *testing.T) {
	rng := rngstream.New("plan-negative")
	_, err := BuildFlowPlan(seqIDs(3), -1, 9000, rng)

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "numflows", ce.Field)
}

func TestFlowPlanRejectsPortOverflow(t *testing.T) {
	rng := rngstream.New("plan-overflow")
	_, err := BuildFlowPlan(seqIDs(3), 10, 65530, rng)

	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "baseport", ce.Field)
}

func TestFlowPlanFlowIDsAscendFromZero(t *testing.T) {
	rng := rngstream.New("plan-ids")
	plan, err := BuildFlowPlan(seqIDs(5), 12, 9000, rng)
	require.NoError(t, err)

	for i, fa := range plan {
		require.Equal(t, i, fa.FlowID)
	}
}
