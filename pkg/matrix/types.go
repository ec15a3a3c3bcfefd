package matrix

import (
	"fmt"
	"strings"
	"time"
)

// Target names the compilation target the external check runs against.
// The value is opaque to the runner and passed through verbatim.
type Target string

func (t Target) String() string {
	return string(t)
}

// TagRequiresCross marks a combination that is only checked when the
// target differs from the matrix's native target.
const TagRequiresCross = "requires-cross"

// Combination is one named set of feature flags to verify. Combinations are
// immutable once declared; the runner never modifies them.
type Combination struct {
	// Name uniquely identifies the combination within a matrix.
	Name string

	// Flags are appended to the check command for this combination.
	Flags []string

	// Tags drive the target-conditional inclusion rule.
	Tags []string

	// Env holds extra environment variables for the check process.
	Env map[string]string
}

// HasTag reports whether the combination carries the given tag.
func (c Combination) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (c Combination) String() string {
	return fmt.Sprintf("<Combination %s: %s>", c.Name, strings.Join(c.Flags, " "))
}

// ScriptOption describes an option declared by the matrix script via option().
type ScriptOption struct {
	DefaultValue string
	Help         string
}

// Plan contains everything a matrix script declares: the check command
// template, the native target and the ordered combination list.
type Plan struct {
	// CheckCommand is the shell template for one check invocation.
	// $TARGET is expanded at invocation time and the combination's flags
	// are appended as extra fields.
	CheckCommand string

	// NativeTarget is the target considered "native/host". Combinations
	// tagged requires-cross are skipped for it. Empty means no combination
	// is ever skipped.
	NativeTarget Target

	// Combinations in declaration order.
	Combinations []Combination

	// Options declared by the script.
	Options map[string]ScriptOption

	// EnvOverrides set through setenv() apply to every check process.
	EnvOverrides map[string]string
}

// CheckResult captures the outcome of a single check invocation.
type CheckResult struct {
	// Timestamp is when the check was started.
	Timestamp time.Time

	// Duration is how long the check took.
	Duration time.Duration

	// Target and Combination identify what was checked.
	Target      Target
	Combination string

	// Flags are the feature flags the check ran with.
	Flags []string

	// Success indicates whether the check passed.
	Success bool

	// ExitCode is the check process's exit code. Zero on success, -1 when
	// the process never started.
	ExitCode int

	// Output holds the combined stdout/stderr of the check process.
	Output string
}

// RunState is the terminal (or in-flight) state of a run.
type RunState int

const (
	// StatePending means the run has not started yet.
	StatePending RunState = iota
	// StateChecking means a combination is currently being checked.
	StateChecking
	// StateSucceeded means every applicable combination passed.
	StateSucceeded
	// StateFailed means a combination failed and the run stopped there.
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateChecking:
		return "checking"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// RunReport is the ordered record of one runner invocation against one
// target. On failure the result list is a prefix of the planned sequence.
type RunReport struct {
	// ID uniquely identifies this run.
	ID string

	// Target the run was performed against.
	Target Target

	// Results in execution order.
	Results []CheckResult

	// State is the terminal state of the run.
	State RunState

	// FailedIndex is the index of the failing combination, -1 when every
	// combination passed. When a run is aborted before its sequence
	// completes (context cancellation), it is the index of the first
	// combination that was not attempted.
	FailedIndex int

	Started  time.Time
	Finished time.Time
}

// CombinedOutput concatenates the captured output of every executed check,
// each prefixed with a header naming the combination.
func (r *RunReport) CombinedOutput() string {
	buffer := strings.Builder{}
	for _, result := range r.Results {
		if result.Output == "" {
			continue
		}
		fmt.Fprintf(&buffer, "==> %s (%s)\n", result.Combination, result.Target)
		buffer.WriteString(result.Output)
		if !strings.HasSuffix(result.Output, "\n") {
			buffer.WriteString("\n")
		}
	}
	return buffer.String()
}

func (r *RunReport) finish(state RunState, failedIndex int) {
	r.State = state
	r.FailedIndex = failedIndex
	r.Finished = time.Now()
}
