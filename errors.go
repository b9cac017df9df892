package flowmon

// errors.go defines the error classes raised while building and running
// a traffic experiment.  Configuration and scheduling problems are raised
// before any simulation activity, report problems after the event loop
// has drained.

import (
	"errors"
	"fmt"
	"strings"
)

// A ConfigurationError marks a rejected experiment configuration.
// Field names the configuration entry that failed validation so the
// problem can be diagnosed without re-running.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error on %s: %s", ce.Field, ce.Msg)
}

// A SchedulingError marks an attempt to place a callback at a simulation
// time that does not exist, e.g., a queue sample instant computed as negative
type SchedulingError struct {
	Msg string
}

func (se *SchedulingError) Error() string {
	return fmt.Sprintf("scheduling error: %s", se.Msg)
}

// A ReportError marks a failure to persist the flow report.  The simulated
// run itself is not rolled back, the failure is surfaced to the caller
type ReportError struct {
	Path string
	Err  error
}

func (re *ReportError) Error() string {
	return fmt.Sprintf("report error on %s: %v", re.Path, re.Err)
}

func (re *ReportError) Unwrap() error {
	return re.Err
}

// ReportErrs gathers a list of accumulated errors into one, dropping the
// nil entries.  A nil return means no error in the list was non-nil.
func ReportErrs(errs []error) error {
	errMsg := make([]string, 0)
	for _, err := range errs {
		if err != nil {
			errMsg = append(errMsg, err.Error())
		}
	}
	if len(errMsg) == 0 {
		return nil
	}

	return errors.New(strings.Join(errMsg, ","))
}
