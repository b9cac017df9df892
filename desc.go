package flowmon

// desc.go holds the serializable description of a traffic experiment,
// and the functions that move it between file and run-time representations.
// Serialization to json or to yaml is selected based on the extension
// of the file name involved.

import (
	"encoding/json"
	"fmt"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
	"os"
	"path"
)

// flowModels lists the recognized inter-arrival models for a traffic source
var flowModels = []string{"const", "constant", "exp", "expon", "exponential"}

// An ExperimentCfg gathers every knob of a traffic experiment.  An instance
// is ordinarily read from file, with DefaultExperimentCfg supplying values
// for a run with no configuration input at all
type ExperimentCfg struct {
	// identifier carried into traces and reports
	Name string `json:"name" yaml:"name"`

	// number of endpoint devices attached to the shared network
	NumNodes int `json:"numnodes" yaml:"numnodes"`

	// number of randomized source/destination flows to install
	NumFlows int `json:"numflows" yaml:"numflows"`

	// length of the measured epoch, in seconds of simulation time
	Epoch float64 `json:"epoch" yaml:"epoch"`

	// offset after epoch start when sources and sinks come up, in seconds
	SrcStart float64 `json:"srcstart" yaml:"srcstart"`

	// requested rate of each traffic source, in Mbits/sec
	FlowRate float64 `json:"flowrate" yaml:"flowrate"`

	// number of bytes in each frame a source emits
	FrameSize int `json:"framesize" yaml:"framesize"`

	// inter-arrival model for source frames, "const" or "expon"
	FlowModel string `json:"flowmodel" yaml:"flowmodel"`

	// first port number handed out by the flow planner
	BasePort int `json:"baseport" yaml:"baseport"`

	// bandwidth of every endpoint interface, in Mbits/sec
	Bndwdth float64 `json:"bandwidth" yaml:"bandwidth"`

	// propagation latency across the shared network, in seconds
	Latency float64 `json:"latency" yaml:"latency"`

	// egress buffer capacity of every interface, in packets
	Buffer int `json:"buffer" yaml:"buffer"`

	// where the per-flow report is written
	ReportFile string `json:"reportfile" yaml:"reportfile"`

	// where the trace is written, when tracing is on
	TraceFile string `json:"tracefile" yaml:"tracefile"`

	// switch for gathering a trace of the run
	UseTrace bool `json:"usetrace" yaml:"usetrace"`
}

// DefaultExperimentCfg is a constructor.  Its values describe a small
// local network carrying twenty randomized flows for a ten second epoch
func DefaultExperimentCfg() *ExperimentCfg {
	cfg := new(ExperimentCfg)
	cfg.Name = "flowmon"
	cfg.NumNodes = 10
	cfg.NumFlows = 20
	cfg.Epoch = 10.0
	cfg.SrcStart = 1.0
	cfg.FlowRate = 1.0
	cfg.FrameSize = 1024
	cfg.FlowModel = "const"
	cfg.BasePort = 9000
	cfg.Bndwdth = 100.0
	cfg.Latency = 10e-6
	cfg.Buffer = 100
	cfg.ReportFile = "flow-report.csv"
	cfg.TraceFile = "flow-trace.yaml"
	cfg.UseTrace = false
	return cfg
}

// Validate checks every configuration field that has a constraint, gathers
// the failures, and returns them aggregated into a single error.  Called
// before any simulation structure is built so that a bad configuration
// never reaches the event loop
func (cfg *ExperimentCfg) Validate() error {
	var errs []error

	if cfg.NumNodes < 2 {
		errs = append(errs, &ConfigurationError{Field: "numnodes",
			Msg: fmt.Sprintf("need at least 2 nodes to form a flow, have %d", cfg.NumNodes)})
	}
	if cfg.NumFlows < 0 {
		errs = append(errs, &ConfigurationError{Field: "numflows",
			Msg: fmt.Sprintf("flow count %d is negative", cfg.NumFlows)})
	}
	if !(cfg.Epoch > 0.0) {
		errs = append(errs, &ConfigurationError{Field: "epoch",
			Msg: fmt.Sprintf("epoch duration %v is not positive", cfg.Epoch)})
	}
	if cfg.SrcStart < 0.0 || !(cfg.SrcStart < cfg.Epoch) {
		errs = append(errs, &ConfigurationError{Field: "srcstart",
			Msg: fmt.Sprintf("source start offset %v falls outside the epoch", cfg.SrcStart)})
	}
	if !(cfg.FlowRate > 0.0) {
		errs = append(errs, &ConfigurationError{Field: "flowrate",
			Msg: fmt.Sprintf("flow rate %v is not positive", cfg.FlowRate)})
	}
	if cfg.FrameSize <= 0 {
		errs = append(errs, &ConfigurationError{Field: "framesize",
			Msg: fmt.Sprintf("frame size %d is not positive", cfg.FrameSize)})
	}
	if !slices.Contains(flowModels, cfg.FlowModel) {
		errs = append(errs, &ConfigurationError{Field: "flowmodel",
			Msg: fmt.Sprintf("model %q is not recognized", cfg.FlowModel)})
	}
	if cfg.BasePort <= 0 || cfg.BasePort+cfg.NumFlows-1 > 65535 {
		errs = append(errs, &ConfigurationError{Field: "baseport",
			Msg: fmt.Sprintf("ports [%d,%d] fall outside the usable range", cfg.BasePort, cfg.BasePort+cfg.NumFlows-1)})
	}
	if !(cfg.Bndwdth > 0.0) {
		errs = append(errs, &ConfigurationError{Field: "bandwidth",
			Msg: fmt.Sprintf("interface bandwidth %v is not positive", cfg.Bndwdth)})
	}
	if cfg.Latency < 0.0 {
		errs = append(errs, &ConfigurationError{Field: "latency",
			Msg: fmt.Sprintf("latency %v is negative", cfg.Latency)})
	}
	if cfg.Buffer <= 0 {
		errs = append(errs, &ConfigurationError{Field: "buffer",
			Msg: fmt.Sprintf("buffer capacity %d is not positive", cfg.Buffer)})
	}
	if len(cfg.ReportFile) == 0 {
		errs = append(errs, &ConfigurationError{Field: "reportfile",
			Msg: "no report destination given"})
	}
	if cfg.UseTrace && len(cfg.TraceFile) == 0 {
		errs = append(errs, &ConfigurationError{Field: "tracefile",
			Msg: "tracing requested with no trace destination"})
	}

	return ReportErrs(errs)
}

// WriteToFile stores the ExperimentCfg struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (cfg *ExperimentCfg) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*cfg)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*cfg, "", "\t")
	}

	if merr != nil {
		return merr
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		return cerr
	}
	_, werr := f.WriteString(string(bytes[:]))
	f.Close()

	return werr
}

// ReadExperimentCfg deserializes a byte slice holding a representation of an
// ExperimentCfg struct.  If the input argument of dict (those bytes) is empty,
// the file whose name is given is read to acquire them.  Fields absent from the
// serialized form keep their default values.  A deserialized representation is
// returned, or an error if one is generated from a file read or the deserialization.
func ReadExperimentCfg(filename string, useYAML bool, dict []byte) (*ExperimentCfg, error) {
	var err error

	// if the dict slice of bytes is empty we get them from the file whose name is an argument
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := DefaultExperimentCfg()

	if useYAML {
		err = yaml.Unmarshal(dict, example)
	} else {
		err = json.Unmarshal(dict, example)
	}

	if err != nil {
		return nil, err
	}

	return example, nil
}
