package flowmon

// trace.go gathers an optional record of the run: a dictionary mapping
// object ids to names, and a time-stamped trail of per-flow events
// (frame emissions, drops, arrivals).  Inactive unless switched on
// in the configuration.

import (
	"encoding/json"
	"github.com/iti/evt/vrtime"
	"gopkg.in/yaml.v3"
	"os"
	"path"
)

// NameType is a an entry in a dictionary created for a trace
// that maps object id numbers to a (name,type) pair
type NameType struct {
	Name string
	Type string
}

// A FlowTrace saves information about the visitation of one frame to some
// point in the simulation, saved for post-run analysis
type FlowTrace struct {
	Time     float64 // time in float64
	Ticks    int64   // ticks variable of time
	Priority int64   // priority field of time-stamp
	FlowID   int     // flow the frame belongs to
	ObjID    int     // integer id for object being referenced
	Op       string  // "send", "drop", "arrive"
}

// TraceManager gathers information about a simulation model and an
// execution of that model
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each objID
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all trace records for this experiment, grouped by flow
	Traces map[int][]FlowTrace `json:"traces" yaml:"traces"`
}

// CreateTraceManager is a constructor.  It saves the name of the experiment
// and a flag indicating whether the trace manager is active.  By testing this
// flag we can inhibit the activity of gathering a trace when we don't want it,
// while embedding calls to its methods everywhere we need them when it is
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.NameByID = make(map[int]NameType)
	tm.Traces = make(map[int][]FlowTrace)
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm.InUse
}

// AddTrace creates a record of the trace using its calling arguments, and stores it
func (tm *TraceManager) AddTrace(vrt vrtime.Time, flowID, objID int, op string) {

	// return if we aren't using the trace manager
	if !tm.InUse {
		return
	}

	_, present := tm.Traces[flowID]
	if !present {
		tm.Traces[flowID] = make([]FlowTrace, 0)
	}

	ft := FlowTrace{Time: vrt.Seconds(), Ticks: vrt.Ticks(), Priority: vrt.Pri(),
		FlowID: flowID, ObjID: objID, Op: op}
	tm.Traces[flowID] = append(tm.Traces[flowID], ft)
}

// AddName is used to add an element to the id -> (name,type) dictionary for the trace file
func (tm *TraceManager) AddName(id int, name string, objDesc string) {
	if tm.InUse {
		_, present := tm.NameByID[id]
		if present {
			panic("duplicated id in AddName")
		}
		tm.NameByID[id] = NameType{Name: name, Type: objDesc}
	}
}

// WriteToFile stores the Traces struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *TraceManager) WriteToFile(filename string) bool {
	if !tm.InUse {
		return false
	}
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*tm)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*tm, "", "\t")
	}

	if merr != nil {
		panic(merr)
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		panic(cerr)
	}
	_, werr := f.WriteString(string(bytes[:]))
	if werr != nil {
		panic(werr)
	}
	f.Close()
	return true
}

// logFlowEvent funnels trace calls from the packet path, tolerating an
// absent manager so the engine never has to test for one
func logFlowEvent(tm *TraceManager, vrt vrtime.Time, flowID, objID int, op string) {
	if tm == nil {
		return
	}
	tm.AddTrace(vrt, flowID, objID, op)
}
