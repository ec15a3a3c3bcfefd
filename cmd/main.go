// Package cmd implements the run-matrix CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/crosscheck-ci/crosscheck/pkg/matrix"
)

// Exit codes of the run-matrix command. External tools can check these
// symbolically instead of using magic numbers.
const (
	// ExitSuccess means every applicable combination passed.
	ExitSuccess = 0

	// ExitCheckFailed means a check failed or could not be spawned.
	ExitCheckFailed = 1

	// ExitConfigError means the runner itself was misconfigured.
	ExitConfigError = 2
)

var RootCmd = &cobra.Command{
	Use:   "run-matrix [flags] [key=value ...]",
	Short: "Verify a build across a feature-flag matrix for one target",
	Long: `run-matrix reads the target to check from the TARGET environment variable,
parses the first matrix.star file it finds and invokes the declared check
command once per applicable feature combination, in declaration order.
The run stops at the first failing check.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMatrix,
}

func init() {
	RootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &matrix.ConfigError{Reason: "invalid command line", Err: err}
	})

	RootCmd.Flags().StringP("matrix", "m", "matrix.star", "matrix script to load")
	RootCmd.Flags().BoolP("all", "a", false, "check every combination, even those excluded for this target")
	RootCmd.Flags().BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	RootCmd.Flags().BoolP("quiet", "q", false, "suppress check output and show a progress bar instead")
	RootCmd.Flags().String("report-dir", "", "persist the run report and captured logs to this directory")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	err := RootCmd.Execute()
	if err != nil {
		logger := zerolog.New(NewConsoleWriter())
		logger.Error().Err(err).Msg("run failed")
	}

	return exitCode(err)
}

// exitCode maps a run's terminal error to the process exit code.
// Misconfiguration exits 2; failed or unspawnable checks exit 1.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var configErr *matrix.ConfigError
	if errors.As(err, &configErr) {
		return ExitConfigError
	}

	return ExitCheckFailed
}

func runMatrix(cmd *cobra.Command, args []string) error {
	matrixFile, err := cmd.Flags().GetString("matrix")
	if err != nil {
		return err
	}

	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	dry, err := cmd.Flags().GetBool("dry")
	if err != nil {
		return err
	}

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}

	reportDir, err := cmd.Flags().GetString("report-dir")
	if err != nil {
		return err
	}

	options := make(map[string]string)
	for _, part := range args {
		pos := strings.Index(part, "=")
		if pos < 0 {
			return &matrix.ConfigError{Reason: fmt.Sprintf("unexpected argument %s, expected key=value", part)}
		}
		options[part[:pos]] = part[pos+1:]
	}

	logger := zerolog.New(NewConsoleWriter())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = matrix.WithLogger(ctx, &logger)

	target := matrix.Target(strings.TrimSpace(os.Getenv("TARGET")))
	if target == "" {
		return &matrix.ConfigError{Reason: "TARGET must be set to a non-empty target name"}
	}

	matrixPath, err := findMatrixFile(matrixFile)
	if err != nil {
		return err
	}

	plan, err := matrix.Parse(ctx, matrixPath, options)
	if err != nil {
		return &matrix.ConfigError{Reason: fmt.Sprintf("failed to load %s", matrixPath), Err: err}
	}

	combinations := plan.Combinations
	if !all {
		combinations = plan.Applicable(target)
	}
	if len(combinations) == 0 {
		return &matrix.ConfigError{Reason: fmt.Sprintf("no combinations apply to target %s", target)}
	}

	checker := &matrix.ExecChecker{
		Command: plan.CheckCommand,
		Env:     plan.EnvOverrides,
		DryRun:  dry,
	}

	var runChecker matrix.Checker = checker
	var bar *progressbar.ProgressBar
	if quiet {
		checker.Stdout = io.Discard
		checker.Stderr = io.Discard
		bar = progressbar.NewOptions(len(combinations),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("checking"),
			progressbar.OptionShowCount(),
		)
		runChecker = &progressChecker{inner: checker, bar: bar}
	}

	report, runErr := matrix.NewRunner(runChecker).Run(ctx, target, combinations)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	if report != nil && reportDir != "" {
		path, err := matrix.WriteReport(reportDir, report)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to persist run report")
		} else {
			logger.Info().Msgf("report %s written to %s", report.ID, path)
		}
	}

	if runErr != nil {
		// When streaming was off, the operator still needs the diagnostic
		// output of the failing step.
		var checkFailure *matrix.CheckFailure
		if quiet && errors.As(runErr, &checkFailure) && checkFailure.Output != "" {
			fmt.Fprint(os.Stderr, checkFailure.Output)
		}
		return runErr
	}

	logger.Info().Msgf("target %s: all %d combinations passed", target, len(report.Results))
	return nil
}

// findMatrixFile locates the matrix script. A name without a path separator
// is searched for upwards, starting at the current working directory.
func findMatrixFile(name string) (string, error) {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, os.PathSeparator) {
		_, err := os.Stat(name)
		if err != nil {
			return "", &matrix.ConfigError{Reason: fmt.Sprintf("failed to check %s", name), Err: err}
		}
		return name, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", &matrix.ConfigError{Reason: "failed to retrieve the current working directory", Err: err}
	}

	path := wd
	for {
		candidate := filepath.Join(path, name)
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !eris.Is(err, os.ErrNotExist) {
			return "", &matrix.ConfigError{Reason: fmt.Sprintf("failed to check %s", candidate), Err: err}
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", &matrix.ConfigError{Reason: fmt.Sprintf("no %s file found", name)}
		}
		path = parent
	}
}

type progressChecker struct {
	inner matrix.Checker
	bar   *progressbar.ProgressBar
}

func (p *progressChecker) Check(ctx context.Context, target matrix.Target, comb matrix.Combination) (matrix.CheckResult, error) {
	p.bar.Describe(comb.Name)
	result, err := p.inner.Check(ctx, target, comb)
	_ = p.bar.Add(1)
	return result, err
}
