package flowmon

// report.go holds the metrics aggregator.  After the event loop has
// drained it converts the frozen per-flow counters, the queue snapshot,
// and the flow plan into one report row per observed flow, and persists
// the rows as a CSV file written atomically so a failure mid-write never
// leaves a partial report behind.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ReportHeader is the fixed first row of every flow report
const ReportHeader = "FlowID,SourceAddress,DestinationAddress,PacketsSent,PacketsReceived," +
	"BytesSent,BytesReceived,SendTimestamp,ReceiveTimestamp,Bandwidth,Delay,PacketLossRate,QueueSize"

// A FlowReport is one derived report row.  Computed once from the flow's
// RawFlowStats, its originating FlowAssignment, and the queue snapshot;
// never mutated after creation
type FlowReport struct {
	FlowID    int
	SrcAddr   string
	DstAddr   string
	TxPackets int
	RxPackets int
	TxBytes   int
	RxBytes   int
	SendTime  float64
	RcvTime   float64
	Bandwidth float64 // bits per second over the flow's observation window
	Delay     float64 // wall-clock span from first send to last receive
	LossRate  float64 // fraction of emitted frames the network dropped
	QueueSize int     // sampled egress queue depth at the flow's source
}

// BuildFlowReports derives one FlowReport per flow id present in the raw
// counters, in ascending flow-id order.  Addresses and the queue lookup
// are exact joins on the originating FlowAssignment rather than guesses
// re-derived from flow-id arithmetic, so a report row always names the
// devices the planner actually paired.  The derivation never emits NaN or
// Inf: a flow whose observation window has zero width reports bandwidth
// and delay of zero
func BuildFlowReports(stats map[int]*RawFlowStats, plan []FlowAssignment,
	qs *QueueSample, addrOf func(int) string) []FlowReport {

	assignByFlow := make(map[int]FlowAssignment)
	for _, fa := range plan {
		assignByFlow[fa.FlowID] = fa
	}

	flowIDs := make([]int, 0, len(stats))
	for flowID := range stats {
		flowIDs = append(flowIDs, flowID)
	}
	sort.Ints(flowIDs)

	reports := make([]FlowReport, 0, len(flowIDs))
	for _, flowID := range flowIDs {
		rfs := stats[flowID]
		fa := assignByFlow[flowID]

		fr := FlowReport{
			FlowID:    flowID,
			SrcAddr:   addrOf(fa.SrcID),
			DstAddr:   addrOf(fa.DstID),
			TxPackets: rfs.TxPackets,
			RxPackets: rfs.RxPackets,
			TxBytes:   rfs.TxBytes,
			RxBytes:   rfs.RxBytes,
			SendTime:  rfs.FirstTxTime,
			RcvTime:   rfs.LastRxTime,
		}

		// the observation window collapses when nothing was received, or
		// everything arrived in the same instant as the first send.  The
		// division is undefined there, so bandwidth and delay report zero
		window := rfs.LastRxTime - rfs.FirstTxTime
		if window > 0.0 {
			fr.Bandwidth = float64(rfs.TxBytes) * 8.0 / window
			fr.Delay = window
		}

		if rfs.TxPackets > 0 {
			fr.LossRate = float64(rfs.LostPackets) / float64(rfs.TxPackets)
		}

		if depth, present := qs.Depth(fa.SrcID); present {
			fr.QueueSize = depth
		}

		reports = append(reports, fr)
	}

	return reports
}

// csvRow renders one report row.  Numeric fields use Go's default decimal
// formatting so equal inputs always render to identical text
func (fr *FlowReport) csvRow() string {
	fields := []string{
		strconv.Itoa(fr.FlowID),
		fr.SrcAddr,
		fr.DstAddr,
		strconv.Itoa(fr.TxPackets),
		strconv.Itoa(fr.RxPackets),
		strconv.Itoa(fr.TxBytes),
		strconv.Itoa(fr.RxBytes),
		strconv.FormatFloat(fr.SendTime, 'g', -1, 64),
		strconv.FormatFloat(fr.RcvTime, 'g', -1, 64),
		strconv.FormatFloat(fr.Bandwidth, 'g', -1, 64),
		strconv.FormatFloat(fr.Delay, 'g', -1, 64),
		strconv.FormatFloat(fr.LossRate, 'g', -1, 64),
		strconv.Itoa(fr.QueueSize),
	}
	return strings.Join(fields, ",")
}

// RenderFlowReports serializes the report rows, header first
func RenderFlowReports(reports []FlowReport) string {
	var sb strings.Builder
	sb.WriteString(ReportHeader)
	sb.WriteString("\n")
	for idx := range reports {
		sb.WriteString(reports[idx].csvRow())
		sb.WriteString("\n")
	}
	return sb.String()
}

// WriteFlowReports persists the rendered report at the named path.  The
// bytes land in a temporary file in the destination directory first and
// are renamed into place, so readers never observe a partial report
func WriteFlowReports(filename string, reports []FlowReport) error {
	rendered := RenderFlowReports(reports)

	dir := filepath.Dir(filename)
	tmp, cerr := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if cerr != nil {
		return &ReportError{Path: filename, Err: cerr}
	}
	tmpName := tmp.Name()

	_, werr := tmp.WriteString(rendered)
	closeErr := tmp.Close()
	if werr == nil {
		werr = closeErr
	}
	if werr != nil {
		os.Remove(tmpName)
		return &ReportError{Path: filename, Err: werr}
	}

	if rerr := os.Rename(tmpName, filename); rerr != nil {
		os.Remove(tmpName)
		return &ReportError{Path: filename, Err: fmt.Errorf("placing report: %w", rerr)}
	}

	return nil
}
