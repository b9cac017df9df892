package flowmon

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// small fixed inputs for aggregator tests: two nodes, one assignment per flow
func testPlanAndAddrs(flowIDs []int) ([]FlowAssignment, func(int) string, *QueueSample) {
	plan := make([]FlowAssignment, 0, len(flowIDs))
	for i, flowID := range flowIDs {
		plan = append(plan, FlowAssignment{FlowID: flowID, SrcID: 1 + i%2, DstID: 2 - i%2, Port: 9000 + i})
	}
	addrOf := func(devID int) string {
		return map[int]string{1: "10.1.0.1", 2: "10.1.0.2"}[devID]
	}
	qs := &QueueSample{depths: map[int]int{1: 3, 2: 7}}
	return plan, addrOf, qs
}

func TestLossRateStaysWithinUnitInterval(t *testing.T) {
	cases := []struct {
		tx, lost int
		want     float64
	}{
		{0, 0, 0.0},
		{10, 0, 0.0},
		{10, 3, 0.3},
		{10, 10, 1.0},
	}

	for _, c := range cases {
		stats := map[int]*RawFlowStats{
			0: {FlowID: 0, TxPackets: c.tx, LostPackets: c.lost, FirstTxTime: 1.0, LastRxTime: 2.0},
		}
		plan, addrOf, qs := testPlanAndAddrs([]int{0})
		reports := BuildFlowReports(stats, plan, qs, addrOf)

		require.Len(t, reports, 1)
		require.InDelta(t, c.want, reports[0].LossRate, 1e-12)
		require.GreaterOrEqual(t, reports[0].LossRate, 0.0)
		require.LessOrEqual(t, reports[0].LossRate, 1.0)
	}
}

func TestZeroWindowYieldsSentinelNotInf(t *testing.T) {
	// all frames received in the same instant as the first send
	stats := map[int]*RawFlowStats{
		0: {FlowID: 0, TxPackets: 4, TxBytes: 4096, RxPackets: 4, RxBytes: 4096,
			FirstTxTime: 2.5, LastRxTime: 2.5},
	}
	plan, addrOf, qs := testPlanAndAddrs([]int{0})
	reports := BuildFlowReports(stats, plan, qs, addrOf)

	require.Len(t, reports, 1)
	require.Equal(t, 0.0, reports[0].Bandwidth)
	require.Equal(t, 0.0, reports[0].Delay)

	row := reports[0].csvRow()
	require.NotContains(t, row, "NaN")
	require.NotContains(t, row, "Inf")
	require.False(t, math.IsNaN(reports[0].Bandwidth))
	require.False(t, math.IsInf(reports[0].Bandwidth, 0))
}

func TestReportRowsSortedAscendingByFlowID(t *testing.T) {
	stats := map[int]*RawFlowStats{
		7: {FlowID: 7, TxPackets: 1, TxBytes: 100, FirstTxTime: 1.0, LastRxTime: 1.5},
		0: {FlowID: 0, TxPackets: 1, TxBytes: 100, FirstTxTime: 1.0, LastRxTime: 1.5},
		3: {FlowID: 3, TxPackets: 1, TxBytes: 100, FirstTxTime: 1.0, LastRxTime: 1.5},
	}
	plan, addrOf, qs := testPlanAndAddrs([]int{0, 3, 7})
	reports := BuildFlowReports(stats, plan, qs, addrOf)

	require.Len(t, reports, len(stats))
	for i := 1; i < len(reports); i++ {
		require.Less(t, reports[i-1].FlowID, reports[i].FlowID)
	}
}

func TestReportJoinsAddressesFromAssignment(t *testing.T) {
	stats := map[int]*RawFlowStats{
		0: {FlowID: 0, TxPackets: 2, TxBytes: 200, RxPackets: 2, RxBytes: 200,
			FirstTxTime: 1.0, LastRxTime: 3.0},
	}
	plan := []FlowAssignment{{FlowID: 0, SrcID: 2, DstID: 1, Port: 9000}}
	addrOf := func(devID int) string {
		return map[int]string{1: "10.1.0.1", 2: "10.1.0.2"}[devID]
	}
	qs := &QueueSample{depths: map[int]int{1: 4, 2: 9}}

	reports := BuildFlowReports(stats, plan, qs, addrOf)
	require.Len(t, reports, 1)

	// the row reflects the plan's pairing, and the queue depth belongs to
	// the flow's actual source device
	require.Equal(t, "10.1.0.2", reports[0].SrcAddr)
	require.Equal(t, "10.1.0.1", reports[0].DstAddr)
	require.Equal(t, 9, reports[0].QueueSize)

	require.InDelta(t, 200.0*8.0/2.0, reports[0].Bandwidth, 1e-9)
	require.InDelta(t, 2.0, reports[0].Delay, 1e-12)
}

func TestRenderEmitsExactHeader(t *testing.T) {
	rendered := RenderFlowReports(nil)
	lines := strings.Split(strings.TrimRight(rendered, "\n"), "\n")

	require.Equal(t,
		"FlowID,SourceAddress,DestinationAddress,PacketsSent,PacketsReceived,BytesSent,BytesReceived,SendTimestamp,ReceiveTimestamp,Bandwidth,Delay,PacketLossRate,QueueSize",
		lines[0])
	require.Len(t, lines, 1)
}

func TestAggregationIsIdempotent(t *testing.T) {
	stats := map[int]*RawFlowStats{
		0: {FlowID: 0, TxPackets: 5, TxBytes: 500, RxPackets: 4, RxBytes: 400,
			LostPackets: 1, FirstTxTime: 1.0, LastRxTime: 9.25},
		1: {FlowID: 1, TxPackets: 8, TxBytes: 800, RxPackets: 8, RxBytes: 800,
			FirstTxTime: 1.0, LastRxTime: 8.5},
	}
	plan, addrOf, qs := testPlanAndAddrs([]int{0, 1})

	first := RenderFlowReports(BuildFlowReports(stats, plan, qs, addrOf))
	second := RenderFlowReports(BuildFlowReports(stats, plan, qs, addrOf))
	require.Equal(t, first, second)
}

func TestWriteFlowReportsAtomicAndRereadable(t *testing.T) {
	stats := map[int]*RawFlowStats{
		0: {FlowID: 0, TxPackets: 3, TxBytes: 300, RxPackets: 3, RxBytes: 300,
			FirstTxTime: 1.0, LastRxTime: 2.0},
	}
	plan, addrOf, qs := testPlanAndAddrs([]int{0})
	reports := BuildFlowReports(stats, plan, qs, addrOf)

	dir := t.TempDir()
	dest := filepath.Join(dir, "report.csv")
	require.NoError(t, WriteFlowReports(dest, reports))

	written, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, RenderFlowReports(reports), string(written))

	// writing again replaces the report with identical bytes
	require.NoError(t, WriteFlowReports(dest, reports))
	rewritten, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, written, rewritten)

	// no temporary litter left beside the report
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteFlowReportsSurfacesIOError(t *testing.T) {
	plan, addrOf, qs := testPlanAndAddrs([]int{0})
	reports := BuildFlowReports(map[int]*RawFlowStats{0: {FlowID: 0}}, plan, qs, addrOf)

	err := WriteFlowReports(filepath.Join(t.TempDir(), "no-such-dir", "report.csv"), reports)

	var re *ReportError
	require.ErrorAs(t, err, &re)
}
