package flowmon

// planner.go builds the flow plan: a randomized assignment of
// source/destination/port triples that the experiment installs as
// traffic sources and sinks.  Sources and destinations are drawn
// uniformly at random and may repeat across flows; the plan only
// guarantees that no flow points at itself and that no two flows
// share a listening port.

import (
	"fmt"
	"github.com/iti/rngstream"
)

// dstRedraws bounds the rejection sampling of a destination.  A draw
// that collides with the source this many times falls through to a
// direct draw over the remaining devices, which cannot collide
const dstRedraws = 8

// A FlowAssignment names one planned traffic stream.  Created once by the
// planner and immutable afterwards; the aggregator joins report rows back
// to assignments by flow id
type FlowAssignment struct {
	FlowID int
	SrcID  int
	DstID  int
	Port   int
}

// BuildFlowPlan produces numFlows assignments over the devices whose ids
// are given, drawing source and destination uniformly at random.  The
// destination is re-drawn until it differs from the source; the source is
// never re-drawn.  Ports are handed out contiguously from basePort, so
// every assignment listens on its own port.  A device population of one
// cannot host a flow and is rejected before any assignment is generated
func BuildFlowPlan(endptIDs []int, numFlows, basePort int, rng *rngstream.RngStream) ([]FlowAssignment, error) {
	numNodes := len(endptIDs)
	if numNodes < 2 {
		return nil, &ConfigurationError{Field: "numnodes",
			Msg: fmt.Sprintf("cannot pair flows over %d device(s)", numNodes)}
	}
	if numFlows < 0 {
		return nil, &ConfigurationError{Field: "numflows",
			Msg: fmt.Sprintf("flow count %d is negative", numFlows)}
	}
	if basePort+numFlows-1 > 65535 {
		return nil, &ConfigurationError{Field: "baseport",
			Msg: fmt.Sprintf("ports [%d,%d] fall outside the usable range", basePort, basePort+numFlows-1)}
	}

	plan := make([]FlowAssignment, 0, numFlows)
	for i := 0; i < numFlows; i++ {
		srcIdx := drawIdx(rng, numNodes)

		// reject destination draws that collide with the source, up to the
		// redraw bound, then exclude the source from the draw range outright
		dstIdx := srcIdx
		for attempt := 0; attempt < dstRedraws && dstIdx == srcIdx; attempt++ {
			dstIdx = drawIdx(rng, numNodes)
		}
		if dstIdx == srcIdx {
			dstIdx = drawIdx(rng, numNodes-1)
			if dstIdx >= srcIdx {
				dstIdx += 1
			}
		}

		plan = append(plan, FlowAssignment{
			FlowID: i,
			SrcID:  endptIDs[srcIdx],
			DstID:  endptIDs[dstIdx],
			Port:   basePort + i%numFlows,
		})
	}

	return plan, nil
}

// drawIdx draws an index uniformly from [0,n) by truncating a continuous
// uniform draw.  The clamp guards the open-interval boundary of RandU01
func drawIdx(rng *rngstream.RngStream, n int) int {
	idx := int(rng.RandU01() * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return idx
}
