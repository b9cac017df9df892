package flowmon

// experiment.go assembles and drives one traffic experiment: build the
// network platform, plan and install the randomized flows, schedule the
// queue sampler, drain the event loop, and hand the frozen counters to
// the metrics aggregator.

import (
	"github.com/iti/evt/evtm"
	"github.com/iti/rngstream"
)

// An Experiment owns every piece of one run.  Data moves one way through
// it: plan -> simulated traffic -> raw counters and queue snapshot ->
// report rows
type Experiment struct {
	cfg      *ExperimentCfg
	evtMgr   *evtm.EventManager
	plat     *NetPlatform
	plan     []FlowAssignment
	qs       *QueueSample
	traceMgr *TraceManager
	reports  []FlowReport
}

// BuildExperiment validates the configuration and assembles the run: the
// platform and its address block, the connectivity check, the flow plan,
// the installed sources and sinks, and the queue sampler.  Any failure
// here happens before a single event has fired
func BuildExperiment(cfg *ExperimentCfg, traceMgr *TraceManager) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if traceMgr == nil {
		traceMgr = CreateTraceManager(cfg.Name, cfg.UseTrace)
	}

	ex := new(Experiment)
	ex.cfg = cfg
	ex.traceMgr = traceMgr
	ex.evtMgr = evtm.New()
	ex.plat = createNetPlatform(cfg, traceMgr)

	if err := CheckConnections(ex.plat); err != nil {
		return nil, err
	}

	rng := rngstream.New(cfg.Name + "-planner")
	plan, err := BuildFlowPlan(ex.plat.EndptIDs(), cfg.NumFlows, cfg.BasePort, rng)
	if err != nil {
		return nil, err
	}
	ex.plan = plan

	for _, fa := range plan {
		if err := installFlow(ex.evtMgr, ex.plat, fa, cfg); err != nil {
			return nil, err
		}
	}

	qs, err := ScheduleQueueSampler(ex.evtMgr, ex.plat, cfg.Epoch)
	if err != nil {
		return nil, err
	}
	ex.qs = qs

	return ex, nil
}

// Plan exposes the immutable flow plan the experiment installed
func (ex *Experiment) Plan() []FlowAssignment {
	return ex.plan
}

// Run drains the event loop up to the end of the epoch.  When it returns
// the counters and the queue snapshot are frozen, and the aggregation
// stage owns them
func (ex *Experiment) Run() {
	ex.evtMgr.Run(ex.cfg.Epoch)
	ex.reports = BuildFlowReports(ex.plat.FlowStats(), ex.plan, ex.qs, ex.plat.EndptAddr)
}

// Reports returns the derived report rows, ascending by flow id
func (ex *Experiment) Reports() []FlowReport {
	return ex.reports
}

// WriteReport persists the report rows at the configured destination, and
// the trace beside it when tracing was on.  A write failure is surfaced
// to the caller; the simulated run itself is not rolled back
func (ex *Experiment) WriteReport() error {
	if err := WriteFlowReports(ex.cfg.ReportFile, ex.reports); err != nil {
		return err
	}

	if ex.traceMgr.Active() {
		ex.traceMgr.WriteToFile(ex.cfg.TraceFile)
	}
	return nil
}
