package matrix

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
)

type parserCtx struct {
	ctx          context.Context
	filepath     string
	options      map[string]ScriptOption
	optionValues map[string]string
	envOverrides map[string]string
	yamlCache    map[string]interface{}
	combinations []Combination
	seen         map[string]bool
	checkCommand string
	nativeTarget string
}

// * Helpers

func getCtx(thread *starlark.Thread) *parserCtx {
	return thread.Local("parserCtx").(*parserCtx)
}

type starlarkIterable interface {
	Len() int
	Iterate() starlark.Iterator
}

func starlarkIterable2stringSlice(input starlarkIterable, field string) ([]string, error) {
	if value, ok := input.(*starlark.List); ok && value == nil {
		return []string{}, nil
	}

	result := make([]string, 0, input.Len())
	iter := input.Iterate()
	defer iter.Done()

	var item starlark.Value
	for iter.Next(&item) {
		switch value := item.(type) {
		case starlark.String:
			result = append(result, value.GoString())
		default:
			return nil, eris.Errorf("expected all items in %s to be strings but found %s", field, item.Type())
		}
	}
	return result, nil
}

func starlarkDict2stringMap(input *starlark.Dict, field string) (map[string]string, error) {
	result := map[string]string{}
	if input == nil {
		return result, nil
	}

	for _, rawKey := range input.Keys() {
		key, ok := rawKey.(starlark.String)
		if !ok {
			return nil, eris.Errorf("found key type %s in %s but only strings are supported", rawKey.Type(), field)
		}

		rawValue, _, err := input.Get(rawKey)
		if err != nil {
			return nil, err
		}
		value, ok := rawValue.(starlark.String)
		if !ok {
			return nil, eris.Errorf("found value of type %s for key %s but only strings are supported", rawValue.Type(), key.GoString())
		}

		result[key.GoString()] = value.GoString()
	}
	return result, nil
}

// resolvePath interprets a script-relative path.
func (c *parserCtx) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(filepath.Dir(c.filepath), path))
}

func simplifyPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}

	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func info(thread *starlark.Thread, msg string, args ...interface{}) {
	ctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos

	log(ctx.ctx).Info().
		Msgf("%s:%d:%d: %s", simplifyPath(ctx.filepath), pos.Line, pos.Col, fmt.Sprintf(msg, args...))
}

func warn(thread *starlark.Thread, msg string, args ...interface{}) {
	ctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos

	log(ctx.ctx).Warn().
		Msgf("%s:%d:%d: %s", simplifyPath(ctx.filepath), pos.Line, pos.Col, fmt.Sprintf(msg, args...))
}

// Parse executes a matrix script and returns the plan it declares. The
// script must declare a check command and at least one combination. Option
// values given on the command line are exposed to the script's option()
// calls.
func Parse(ctx context.Context, filename string, options map[string]string) (*Plan, error) {
	filename, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}

	builtins := starlark.StringDict{
		"OS":            starlark.String(runtime.GOOS),
		"ARCH":          starlark.String(runtime.GOARCH),
		"info":          starlark.NewBuiltin("info", starInfo),
		"warn":          starlark.NewBuiltin("warn", starWarn),
		"error":         starlark.NewBuiltin("error", starError),
		"option":        starlark.NewBuiltin("option", option),
		"getenv":        starlark.NewBuiltin("getenv", getenv),
		"setenv":        starlark.NewBuiltin("setenv", setenv),
		"read_yaml":     starlark.NewBuiltin("read_yaml", readYaml),
		"isdir":         starlark.NewBuiltin("isdir", starIsdir),
		"isfile":        starlark.NewBuiltin("isfile", starIsfile),
		"combination":   starlark.NewBuiltin("combination", combination),
		"check_command": starlark.NewBuiltin("check_command", checkCommand),
		"native_target": starlark.NewBuiltin("native_target", nativeTarget),
	}

	thread := &starlark.Thread{
		Name: "matrix",
		Print: func(thread *starlark.Thread, msg string) {
			log(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	threadCtx := parserCtx{
		ctx:          ctx,
		filepath:     filename,
		options:      make(map[string]ScriptOption),
		optionValues: options,
		envOverrides: make(map[string]string),
		yamlCache:    make(map[string]interface{}),
		combinations: make([]Combination, 0),
		seen:         make(map[string]bool),
	}
	thread.SetLocal("parserCtx", &threadCtx)

	script, err := os.ReadFile(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read file %s", filename)
	}

	_, err = starlark.ExecFile(thread, simplifyPath(filename), script, builtins)
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return nil, eris.Errorf("failed to execute %s:\n%s", simplifyPath(filename), evalError.Backtrace())
		}
		return nil, eris.Wrapf(err, "failed to execute %s", simplifyPath(filename))
	}

	if threadCtx.checkCommand == "" {
		return nil, eris.Errorf("%s did not declare a check command", simplifyPath(filename))
	}

	if len(threadCtx.combinations) == 0 {
		return nil, eris.Errorf("%s declared no combinations", simplifyPath(filename))
	}

	if threadCtx.nativeTarget == "" {
		threadCtx.nativeTarget = os.Getenv("NATIVE_TARGET")
	}

	return &Plan{
		CheckCommand: threadCtx.checkCommand,
		NativeTarget: Target(threadCtx.nativeTarget),
		Combinations: threadCtx.combinations,
		Options:      threadCtx.options,
		EnvOverrides: threadCtx.envOverrides,
	}, nil
}
