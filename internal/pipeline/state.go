package pipeline

import "github.com/open-edge-platform/ossa-collector/internal/ospackage"

// State is a package's position in the pipeline.
type State int

const (
	Listed State = iota
	Retrieving
	Extracting
	Addressing
	Classifying
	Assembling
	Written
	Skipped
)

var stateNames = [...]string{"listed", "retrieving", "extracting", "addressing", "classifying", "assembling", "written", "skipped"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Result is the outcome of one package. Step names the state a skipped
// package failed in; Reason carries the cause or a validation warning.
type Result struct {
	Package    ospackage.Ref
	State      State
	Step       State
	Reason     string
	AdvisoryID string
	Output     string
}

// Summary counts results per terminal state.
type Summary struct {
	Written int
	Skipped int
}

// Summarize tallies results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.State {
		case Written:
			s.Written++
		case Skipped:
			s.Skipped++
		}
	}
	return s
}
