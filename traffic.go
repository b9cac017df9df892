package flowmon

// traffic.go holds the application-side traffic primitives: a bounded-rate
// source that emits frames toward a destination address and port, a sink
// that absorbs them, and the per-flow counters both of them maintain.
// Sources and sinks act only through callbacks on the event timeline, so
// the counters need no locking.

import (
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// RawFlowStats carries the counters recorded for one flow over the epoch.
// Populated continuously while the sources run, frozen once the event
// loop drains, and read exactly once by the metrics aggregator
type RawFlowStats struct {
	FlowID      int
	TxPackets   int
	RxPackets   int
	TxBytes     int
	RxBytes     int
	LostPackets int

	// time the source emitted its first frame
	FirstTxTime float64

	// time the sink absorbed its most recent frame
	LastRxTime float64

	sawTx bool
}

// a statsRegistry holds the RawFlowStats of every flow the platform carries
type statsRegistry struct {
	byFlow map[int]*RawFlowStats
}

func createStatsRegistry() *statsRegistry {
	sr := new(statsRegistry)
	sr.byFlow = make(map[int]*RawFlowStats)
	return sr
}

// flowEntry returns the counter block for the flow, creating it on first touch
func (sr *statsRegistry) flowEntry(flowID int) *RawFlowStats {
	rfs, present := sr.byFlow[flowID]
	if !present {
		rfs = &RawFlowStats{FlowID: flowID}
		sr.byFlow[flowID] = rfs
	}
	return rfs
}

// recordTx notes the emission of one frame, remembering the time of the first
func (sr *statsRegistry) recordTx(flowID, msgLen int, now float64) {
	rfs := sr.flowEntry(flowID)
	rfs.TxPackets += 1
	rfs.TxBytes += msgLen
	if !rfs.sawTx {
		rfs.FirstTxTime = now
		rfs.sawTx = true
	}
}

// recordRx notes the absorption of one frame by the flow's sink
func (sr *statsRegistry) recordRx(flowID, msgLen int, now float64) {
	rfs := sr.flowEntry(flowID)
	rfs.RxPackets += 1
	rfs.RxBytes += msgLen
	rfs.LastRxTime = now
}

// recordLoss notes a frame the network dropped
func (sr *statsRegistry) recordLoss(flowID int) {
	sr.flowEntry(flowID).LostPackets += 1
}

// A trafficSrc emits frames of a fixed length at a bounded rate toward
// one (destination, port) pair, from its installation offset until the
// end of the epoch
type trafficSrc struct {
	flowID   int
	src      *endptDev
	dstID    int
	port     int
	frameLen int     // bytes per frame
	rate     float64 // requested rate, Mbits/sec
	stopTime float64 // simulation time after which no frame is emitted

	// function that computes inter-arrival times for frames.  First argument
	// is U01 random number, second argument is vector of parameters
	sampleNxtArrival func(float64, []float64) float64
}

// createTrafficSrc is a constructor.  The inter-arrival model is chosen
// by the configured name, constant spacing being the default
func createTrafficSrc(flowID int, src *endptDev, dstID, port, frameLen int,
	rate float64, flowModel string, stopTime float64) *trafficSrc {

	ts := new(trafficSrc)
	ts.flowID = flowID
	ts.src = src
	ts.dstID = dstID
	ts.port = port
	ts.frameLen = frameLen
	ts.rate = rate
	ts.stopTime = stopTime

	switch flowModel {
	case "exp", "expon", "exponential":
		ts.sampleNxtArrival = sampleExpRV
	default:
		ts.sampleNxtArrival = sampleConst
	}
	return ts
}

// arrivalRatePckts converts the requested bit rate into frames per second
func (ts *trafficSrc) arrivalRatePckts() float64 {
	return ts.rate * 1e6 / float64(8*ts.frameLen)
}

// srcPcktArrival is the event handler for frame emissions.  Each activation
// emits one frame into the source's egress interface and schedules the next
// activation, until the stop time arrives or the source is suspended
func srcPcktArrival(evtMgr *evtm.EventManager, context any, data any) any {
	ts := context.(*trafficSrc)

	now := evtMgr.CurrentSeconds()
	if !(now < ts.stopTime) {
		return nil
	}

	plat := ts.src.plat
	plat.stats.recordTx(ts.flowID, ts.frameLen, now)
	logFlowEvent(plat.traceMgr, evtMgr.CurrentTime(), ts.flowID, ts.src.intrfc.number, "send")

	pm := &packetMsg{flowID: ts.flowID, srcID: ts.src.endptID, dstID: ts.dstID,
		port: ts.port, msgLen: ts.frameLen, sendTime: now}
	enterEgress(evtMgr, ts.src.intrfc, pm)

	// schedule the next emission
	u01 := ts.src.devRng().RandU01()
	params := []float64{ts.arrivalRatePckts()}
	interarrival := ts.sampleNxtArrival(u01, params)
	evtMgr.Schedule(ts, nil, srcPcktArrival, vrtime.SecondsToTime(interarrival))

	return nil
}

// A trafficSink absorbs the frames addressed to one port on one endpoint
// and credits them to the flow it was installed for
type trafficSink struct {
	flowID int
	owner  *endptDev
	port   int
}

// createTrafficSink is a constructor
func createTrafficSink(flowID int, owner *endptDev, port int) *trafficSink {
	sk := new(trafficSink)
	sk.flowID = flowID
	sk.owner = owner
	sk.port = port
	return sk
}

// deposit credits an absorbed frame to the sink's flow
func (sk *trafficSink) deposit(evtMgr *evtm.EventManager, pm *packetMsg) {
	plat := sk.owner.plat
	plat.stats.recordRx(pm.flowID, pm.msgLen, evtMgr.CurrentSeconds())
	logFlowEvent(plat.traceMgr, evtMgr.CurrentTime(), pm.flowID, sk.owner.intrfc.number, "arrive")
}

// installFlow binds one flow assignment to the platform: the sink starts
// listening on the destination immediately, the source's first emission is
// scheduled at the given offset, and both run to the end of the epoch
func installFlow(evtMgr *evtm.EventManager, np *NetPlatform, fa FlowAssignment,
	cfg *ExperimentCfg) error {

	src, present := np.endptByID[fa.SrcID]
	if !present {
		return fmt.Errorf("flow %d names unknown source device %d", fa.FlowID, fa.SrcID)
	}
	dst, present := np.endptByID[fa.DstID]
	if !present {
		return fmt.Errorf("flow %d names unknown destination device %d", fa.FlowID, fa.DstID)
	}

	if cfg.FrameSize > src.intrfc.state.mtu {
		return fmt.Errorf("flow %d frame size %d exceeds interface MTU %d",
			fa.FlowID, cfg.FrameSize, src.intrfc.state.mtu)
	}

	dst.addSink(createTrafficSink(fa.FlowID, dst, fa.Port))

	ts := createTrafficSrc(fa.FlowID, src, fa.DstID, fa.Port, cfg.FrameSize,
		cfg.FlowRate, cfg.FlowModel, cfg.Epoch)
	evtMgr.Schedule(ts, nil, srcPcktArrival, vrtime.SecondsToTime(cfg.SrcStart))

	return nil
}
