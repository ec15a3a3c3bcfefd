package matrix

import (
	"context"
	"strings"
	"time"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
)

// Checker performs a single check invocation. The returned error is non-nil
// only when the check could not be started; a check that ran and failed is
// reported through CheckResult.Success instead.
type Checker interface {
	Check(ctx context.Context, target Target, comb Combination) (CheckResult, error)
}

// Runner executes an ordered sequence of check invocations with fail-fast
// semantics. Checks run strictly sequentially; the runner blocks on each
// child process before deciding whether to continue.
type Runner struct {
	Checker Checker
}

// NewRunner creates a Runner that performs checks through the given Checker.
func NewRunner(checker Checker) *Runner {
	return &Runner{Checker: checker}
}

// Run checks every combination in order against the given target and stops
// at the first failure. On success the returned report holds one result per
// combination. On failure the report holds the results up to and including
// the failing combination and the error is a *CheckFailure or *SpawnError.
func (r *Runner) Run(ctx context.Context, target Target, combinations []Combination) (*RunReport, error) {
	if strings.TrimSpace(string(target)) == "" {
		return nil, &ConfigError{Reason: "target must not be empty"}
	}

	if len(combinations) == 0 {
		return nil, &ConfigError{Reason: "combination list must not be empty"}
	}

	report := &RunReport{
		ID:          nanoid.New(),
		Target:      target,
		Results:     make([]CheckResult, 0, len(combinations)),
		State:       StatePending,
		FailedIndex: -1,
		Started:     time.Now(),
	}

	for idx, comb := range combinations {
		if err := ctx.Err(); err != nil {
			report.finish(StateFailed, idx)
			return report, eris.Wrapf(err, "run aborted before combination %s", comb.Name)
		}

		report.State = StateChecking
		log(ctx).Info().
			Str("combination", comb.Name).
			Str("target", string(target)).
			Msgf("checking combination %d/%d", idx+1, len(combinations))

		result, err := r.Checker.Check(ctx, target, comb)
		report.Results = append(report.Results, result)

		if err != nil {
			report.finish(StateFailed, idx)
			return report, err
		}

		if !result.Success {
			report.finish(StateFailed, idx)
			return report, &CheckFailure{
				Target:      target,
				Index:       idx,
				Combination: comb.Name,
				ExitCode:    result.ExitCode,
				Output:      result.Output,
			}
		}

		log(ctx).Info().
			Str("combination", comb.Name).
			Msgf("passed in %.1fs", result.Duration.Seconds())
	}

	report.finish(StateSucceeded, -1)
	return report, nil
}
