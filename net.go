package flowmon

// net.go contains code and data structures supporting the movement
// of traffic frames from endpoint devices across a shared broadcast
// network.  Every endpoint owns one interface with a finite egress
// buffer; frames serialize through the interface at its bandwidth,
// cross the network after a propagation latency, and are deposited
// into the sink listening on the addressed (device, port) pair.

import (
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/rngstream"
	"math"
)

// utility for generating unique integer ids on demand, scoped to one platform
type idCounter struct {
	numIds int
}

func (idc *idCounter) nxtID() int {
	idc.numIds += 1
	return idc.numIds
}

// A NetPlatform gathers every run-time structure of one experiment's
// network: the shared subnetwork, the endpoint devices, lookup maps
// for both, and the per-flow counters the aggregator will read after
// the event loop drains.  Scoping these to a struct (rather than
// package globals) lets independent experiments coexist
type NetPlatform struct {
	net         *networkStruct
	endptByID   map[int]*endptDev
	endptByName map[string]*endptDev
	intrfcByID  map[int]*intrfcStruct
	stats       *statsRegistry
	traceMgr    *TraceManager
	idc         idCounter
}

// EndptIDs returns the device ids of the platform's endpoints in creation order
func (np *NetPlatform) EndptIDs() []int {
	ids := make([]int, 0, len(np.net.netEndpts))
	for _, endpt := range np.net.netEndpts {
		ids = append(ids, endpt.endptID)
	}
	return ids
}

// EndptAddr returns the network address assigned to the endpoint with the given id
func (np *NetPlatform) EndptAddr(devID int) string {
	endpt, present := np.endptByID[devID]
	if !present {
		return ""
	}
	return endpt.endptAddr
}

// FlowStats exposes the per-flow counters, keyed by flow id.  Read after
// the event loop has drained, at which point the counters are frozen
func (np *NetPlatform) FlowStats() map[int]*RawFlowStats {
	return np.stats.byFlow
}

// createNetPlatform builds the run-time network for a validated configuration:
// one broadcast subnetwork, cfg.NumNodes endpoints each holding a single
// interface facing it, and a contiguous address block across the endpoints
func createNetPlatform(cfg *ExperimentCfg, traceMgr *TraceManager) *NetPlatform {
	np := new(NetPlatform)
	np.endptByID = make(map[int]*endptDev)
	np.endptByName = make(map[string]*endptDev)
	np.intrfcByID = make(map[int]*intrfcStruct)
	np.stats = createStatsRegistry()
	np.traceMgr = traceMgr

	np.net = createNetworkStruct(np, cfg.Name+"-net", cfg.Latency)

	for idx := 0; idx < cfg.NumNodes; idx++ {
		endptName := fmt.Sprintf("endpt-%d", idx)
		endpt := createEndptDev(np, endptName)

		// the address block is contiguous, one address per endpoint
		endpt.endptAddr = fmt.Sprintf("10.1.0.%d", idx+1)

		intrfc := createIntrfcStruct(np, endpt, cfg.Bndwdth, cfg.Buffer)
		intrfc.faces = np.net
		endpt.intrfc = intrfc

		np.net.addEndpt(endpt)
		traceMgr.AddName(endpt.endptID, endptName, "endpt")
		traceMgr.AddName(intrfc.number, intrfc.name, "interface")
	}

	return np
}

// An endptDev is a device that originates and absorbs traffic.  It holds
// exactly one interface onto the shared network, an assigned network
// address, and the sinks listening on its ports
type endptDev struct {
	endptName string
	endptID   int
	endptAddr string
	intrfc    *intrfcStruct
	sinks     map[int]*trafficSink // listening port -> sink
	rngstrm   *rngstream.RngStream // every device has its own RNG stream
	plat      *NetPlatform
}

// createEndptDev is a constructor, registering the new device in the platform maps
func createEndptDev(np *NetPlatform, name string) *endptDev {
	endpt := new(endptDev)
	endpt.endptName = name
	endpt.endptID = np.idc.nxtID()
	endpt.sinks = make(map[int]*trafficSink)
	endpt.rngstrm = rngstream.New(name)
	endpt.plat = np

	np.endptByID[endpt.endptID] = endpt
	np.endptByName[name] = endpt
	return endpt
}

// devRng gives traffic sources access to the stream owned by their device
func (endpt *endptDev) devRng() *rngstream.RngStream {
	return endpt.rngstrm
}

// addSink registers a sink on the port it listens to.  Ports are handed out
// uniquely by the flow planner, so an occupied port marks a planner defect
func (endpt *endptDev) addSink(sink *trafficSink) {
	_, present := endpt.sinks[sink.port]
	if present {
		panic(fmt.Errorf("port %d on %s already occupied", sink.port, endpt.endptName))
	}
	endpt.sinks[sink.port] = sink
}

// The intrfcStruct holds information about the network interface embedded
// in an endpoint device
type intrfcStruct struct {
	name   string
	number int
	device *endptDev
	faces  *networkStruct
	state  *intrfcState
}

// The intrfcState holds parameters descriptive of the interface's capabilities
// and the dynamic state of its egress side
type intrfcState struct {
	bndwdth   float64 // maximum bandwidth (in Mbits/sec)
	bufferCap int     // egress buffer capacity (in packets)
	mtu       int     // maximum frame size (bytes)
	inQueue   int     // frames buffered on the egress side right now
	empties   float64 // time when the egress side next goes idle
	drops     int     // frames refused because the buffer was full
}

func createIntrfcState(bndwdth float64, bufferCap int) *intrfcState {
	iss := new(intrfcState)
	iss.bndwdth = bndwdth
	iss.bufferCap = bufferCap
	iss.mtu = 1500 // in bytes, set for Ethernet2 MTU
	iss.inQueue = 0
	iss.empties = 0.0
	iss.drops = 0
	return iss
}

// createIntrfcStruct is a constructor, registering the interface in the platform maps
func createIntrfcStruct(np *NetPlatform, endpt *endptDev, bndwdth float64, bufferCap int) *intrfcStruct {
	is := new(intrfcStruct)
	is.number = np.idc.nxtID()
	is.name = fmt.Sprintf("intrfc@%s", endpt.endptName)
	is.device = endpt
	is.state = createIntrfcState(bndwdth, bufferCap)

	np.intrfcByID[is.number] = is
	return is
}

// qlen reports the number of frames buffered on the egress side, the
// quantity the queue sampler snapshots
func (intrfc *intrfcStruct) qlen() int {
	return intrfc.state.inQueue
}

// serviceTime gives the time one frame of the given length takes to
// serialize through the interface
func (intrfc *intrfcStruct) serviceTime(frameLen int) float64 {
	frameLenMbits := float64(8*frameLen) / 1e6
	return roundFloat(frameLenMbits/intrfc.state.bndwdth, rdigits)
}

// A networkStruct holds the attributes of the model's single shared
// communication subnetwork.  Every endpoint interface faces it, and
// every frame that leaves an interface crosses it
type networkStruct struct {
	name       string
	number     int
	netLatency float64 // propagation latency through the network, seconds
	netEndpts  []*endptDev
	plat       *NetPlatform
}

// createNetworkStruct is a constructor
func createNetworkStruct(np *NetPlatform, name string, latency float64) *networkStruct {
	ns := new(networkStruct)
	ns.name = name
	ns.number = np.idc.nxtID()
	ns.netLatency = latency
	ns.netEndpts = make([]*endptDev, 0)
	ns.plat = np
	return ns
}

func (ns *networkStruct) addEndpt(endpt *endptDev) {
	ns.netEndpts = append(ns.netEndpts, endpt)
}

// A packetMsg describes one traffic frame in passage from a source
// endpoint to the sink addressed by (dstID, port)
type packetMsg struct {
	flowID   int
	srcID    int
	dstID    int
	port     int
	msgLen   int     // bytes
	sendTime float64 // simulation time the source emitted the frame
}

// enterEgress places a frame on the egress side of its source interface.
// A frame arriving to a full buffer is dropped and counted against the
// flow's losses; otherwise its serialization completion is scheduled
// behind every frame already buffered
func enterEgress(evtMgr *evtm.EventManager, intrfc *intrfcStruct, pm *packetMsg) {
	now := evtMgr.CurrentSeconds()
	state := intrfc.state

	if state.inQueue >= state.bufferCap {
		state.drops += 1
		intrfc.device.plat.stats.recordLoss(pm.flowID)
		logFlowEvent(intrfc.device.plat.traceMgr, evtMgr.CurrentTime(), pm.flowID, intrfc.number, "drop")
		return
	}

	state.inQueue += 1

	// the egress side serves frames back to back, so this frame completes
	// after the later of now and the in-progress work, plus its own service
	srvTime := intrfc.serviceTime(pm.msgLen)
	start := math.Max(now, state.empties)
	state.empties = roundFloat(start+srvTime, rdigits)

	evtMgr.Schedule(intrfc, pm, egressComplete, vrtime.SecondsToTime(state.empties-now))
}

// egressComplete marks the end of a frame's serialization through its
// source interface.  The frame leaves the egress buffer and crosses the
// network, arriving at the destination after the propagation latency
func egressComplete(evtMgr *evtm.EventManager, context any, data any) any {
	intrfc := context.(*intrfcStruct)
	pm := data.(*packetMsg)

	intrfc.state.inQueue -= 1

	net := intrfc.faces
	dst, present := net.plat.endptByID[pm.dstID]
	if !present {
		panic(fmt.Errorf("frame of flow %d addressed to unknown device %d", pm.flowID, pm.dstID))
	}

	evtMgr.Schedule(dst, pm, packetArrival, vrtime.SecondsToTime(net.netLatency))
	return nil
}

// packetArrival deposits a frame into the sink listening on the addressed
// port.  A frame addressed to a port with no listener is dropped silently,
// the way an unmatched datagram would be
func packetArrival(evtMgr *evtm.EventManager, context any, data any) any {
	endpt := context.(*endptDev)
	pm := data.(*packetMsg)

	sink, present := endpt.sinks[pm.port]
	if !present {
		return nil
	}
	sink.deposit(evtMgr, pm)
	return nil
}

var rdigits uint = 15

// round computed simulation time to avoid non-sensical comparisons
// induced by rounding error
func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// expRV returns a sample of a exponentially distributed random number
func expRV(u01, rate float64) float64 {
	return -math.Log(1.0-u01) / rate
}

// sampleExpRV has the function signature expected by a traffic source
// for calling a next interarrival time
func sampleExpRV(u01 float64, params []float64) float64 {
	return expRV(u01, params[0])
}

// sampleConst has the function signature expected by a traffic source
// for calling a next interarrival time, here, a constant
func sampleConst(u01 float64, params []float64) float64 {
	return 1.0 / params[0]
}
