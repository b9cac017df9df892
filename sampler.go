package flowmon

// sampler.go schedules the queue-occupancy snapshot: one point sample of
// every endpoint interface's egress queue depth, taken shortly before the
// epoch ends.  The snapshot is a single observation, not a running
// statistic; bursts after the sample instant are invisible to the report.

import (
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
)

// sampleLead is how long before the epoch end the snapshot is taken, in seconds
const sampleLead = 1.0

// A QueueSample holds the snapshot of egress queue depths, keyed by the
// device id of the endpoint owning the sampled interface.  Written once
// per device by the scheduled sampling callbacks and read only after the
// event loop drains, so ownership passes cleanly from sampler to aggregator
type QueueSample struct {
	depths map[int]int
}

// Depth looks up the sampled depth of the given device's interface
func (qs *QueueSample) Depth(devID int) (int, bool) {
	depth, present := qs.depths[devID]
	return depth, present
}

// Len reports how many devices have been sampled
func (qs *QueueSample) Len() int {
	return len(qs.depths)
}

// a queueProbe carries what one sampling callback needs: the interface to
// read and the snapshot to record into
type queueProbe struct {
	intrfc *intrfcStruct
	sample *QueueSample
}

// recordQueueDepth is the event handler for one device's sample
func recordQueueDepth(evtMgr *evtm.EventManager, context any, data any) any {
	probe := context.(*queueProbe)
	probe.sample.depths[probe.intrfc.device.endptID] = probe.intrfc.qlen()
	return nil
}

// ScheduleQueueSampler registers one sampling callback per endpoint at
// epoch - sampleLead, in device creation order, and returns the snapshot
// those callbacks will fill.  An epoch shorter than the lead would place
// the sample at a negative time, which is rejected before anything is
// scheduled
func ScheduleQueueSampler(evtMgr *evtm.EventManager, np *NetPlatform, epoch float64) (*QueueSample, error) {
	sampleAt := epoch - sampleLead
	if sampleAt < 0.0 {
		return nil, &SchedulingError{
			Msg: fmt.Sprintf("queue sample instant %v is negative for epoch %v", sampleAt, epoch)}
	}

	qs := &QueueSample{depths: make(map[int]int)}
	for _, endpt := range np.net.netEndpts {
		probe := &queueProbe{intrfc: endpt.intrfc, sample: qs}
		evtMgr.Schedule(probe, nil, recordQueueDepth, vrtime.SecondsToTime(sampleAt))
	}

	return qs, nil
}
