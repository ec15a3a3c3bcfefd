package matrix

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/shell"
)

// ExecChecker invokes the external check command for one combination at a
// time. The command template is expanded with shell semantics, so quoting
// and $TARGET references behave the way they would in a CI script.
type ExecChecker struct {
	// Command is the shell template for one check invocation.
	Command string

	// Env holds matrix-wide environment overrides for the check process.
	Env map[string]string

	// Dir is the working directory for the check process. Empty means the
	// current directory.
	Dir string

	// Stdout and Stderr receive the check's streamed output in addition to
	// the capture buffer. They default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	// DryRun only logs the commands instead of executing them.
	DryRun bool
}

// Check runs the check command once for the given target and combination.
// The process's output is streamed and captured at the same time. A non-nil
// error is always a *SpawnError; ordinary check failures are reported via
// the result.
func (c *ExecChecker) Check(ctx context.Context, target Target, comb Combination) (CheckResult, error) {
	started := time.Now()
	result := CheckResult{
		Timestamp:   started,
		Target:      target,
		Combination: comb.Name,
		Flags:       comb.Flags,
		ExitCode:    -1,
	}

	args, err := c.commandArgs(target, comb)
	if err != nil {
		result.Duration = time.Since(started)
		return result, &SpawnError{Target: target, Combination: comb.Name, Err: err}
	}

	if c.DryRun {
		log(ctx).Info().
			Str("combination", comb.Name).
			Bool("command", true).
			Msg(strings.Join(args, " "))

		result.Success = true
		result.ExitCode = 0
		result.Duration = time.Since(started)
		return result, nil
	}

	output := bytes.Buffer{}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.environ(target, comb)
	cmd.Stdout = io.MultiWriter(c.stdout(), &output)
	cmd.Stderr = io.MultiWriter(c.stderr(), &output)

	log(ctx).Info().
		Str("combination", comb.Name).
		Bool("command", true).
		Msg(strings.Join(args, " "))

	err = cmd.Run()
	result.Duration = time.Since(started)
	result.Output = output.String()

	if err == nil {
		result.Success = true
		result.ExitCode = 0
		return result, nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		// the process never ran
		return result, &SpawnError{Target: target, Combination: comb.Name, Err: err}
	}

	result.ExitCode = exitErr.ExitCode()
	return result, nil
}

// commandArgs expands the command template and appends the combination's
// flags. Template expansion sees TARGET, the matrix env overrides and the
// process environment, in that order of precedence.
func (c *ExecChecker) commandArgs(target Target, comb Combination) ([]string, error) {
	fields, err := shell.Fields(c.Command, func(name string) string {
		if name == "TARGET" {
			return string(target)
		}
		if value, ok := comb.Env[name]; ok {
			return value
		}
		if value, ok := c.Env[name]; ok {
			return value
		}
		return os.Getenv(name)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to expand command template %s", c.Command)
	}

	if len(fields) == 0 {
		return nil, eris.Errorf("command template %q expanded to nothing", c.Command)
	}

	return append(fields, comb.Flags...), nil
}

func (c *ExecChecker) environ(target Target, comb Combination) []string {
	env := os.Environ()
	for name, value := range c.Env {
		env = append(env, fmt.Sprintf("%s=%s", name, value))
	}
	for name, value := range comb.Env {
		env = append(env, fmt.Sprintf("%s=%s", name, value))
	}
	return append(env, fmt.Sprintf("TARGET=%s", target))
}

func (c *ExecChecker) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

func (c *ExecChecker) stderr() io.Writer {
	if c.Stderr != nil {
		return c.Stderr
	}
	return os.Stderr
}
