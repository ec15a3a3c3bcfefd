package matrix

import "fmt"

// ConfigError indicates the runner was misconfigured (missing target, empty
// matrix, unreadable script). Nothing has been spawned when it is returned.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// CheckFailure indicates a check invocation ran and exited non-zero. The run
// stops at this combination; later combinations are never attempted.
type CheckFailure struct {
	Target      Target
	Index       int
	Combination string
	ExitCode    int
	Output      string
}

func (e *CheckFailure) Error() string {
	return fmt.Sprintf("check %s for target %s failed with exit code %d",
		e.Combination, e.Target, e.ExitCode)
}

// SpawnError indicates the check command could not be started at all. It is
// propagated like a CheckFailure but tagged distinctly so callers can tell
// "tool broken" from "code under test failed".
type SpawnError struct {
	Target      Target
	Combination string
	Err         error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn check %s for target %s: %v",
		e.Combination, e.Target, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
