package matrix

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "matrix.star")
	err := os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func TestParse_FullScript(t *testing.T) {
	path := writeScript(t, `
native_target("x86_64-unknown-linux-gnu")
check_command("cargo check --target $TARGET")
setenv("CARGO_TERM_COLOR", "never")

combination("no-default-features", flags=["--no-default-features"])
combination("default-features", tags=["requires-cross"])
combination("asm", flags=["--features", "inline-asm"], env={"RUSTFLAGS": "-D warnings"})
`)

	plan, err := Parse(testCtx(), path, nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if plan.CheckCommand != "cargo check --target $TARGET" {
		t.Errorf("unexpected check command %q", plan.CheckCommand)
	}
	if plan.NativeTarget != "x86_64-unknown-linux-gnu" {
		t.Errorf("unexpected native target %q", plan.NativeTarget)
	}
	if plan.EnvOverrides["CARGO_TERM_COLOR"] != "never" {
		t.Errorf("setenv override missing, got %v", plan.EnvOverrides)
	}

	wantOrder := []string{"no-default-features", "default-features", "asm"}
	if len(plan.Combinations) != len(wantOrder) {
		t.Fatalf("expected %d combinations, got %d", len(wantOrder), len(plan.Combinations))
	}
	for idx, name := range wantOrder {
		if plan.Combinations[idx].Name != name {
			t.Errorf("combination %d: expected %s, got %s", idx, name, plan.Combinations[idx].Name)
		}
	}

	asm := plan.Combinations[2]
	if len(asm.Flags) != 2 || asm.Flags[0] != "--features" || asm.Flags[1] != "inline-asm" {
		t.Errorf("unexpected flags %v", asm.Flags)
	}
	if asm.Env["RUSTFLAGS"] != "-D warnings" {
		t.Errorf("unexpected env %v", asm.Env)
	}

	if !plan.Combinations[1].HasTag(TagRequiresCross) {
		t.Error("expected the default-features combination to require cross compilation")
	}
}

func TestParse_ShippedMatrix(t *testing.T) {
	t.Setenv("NATIVE_TARGET", "")

	tests := []struct {
		name       string
		options    map[string]string
		wantNative Target
	}{
		{name: "default native triple", options: nil, wantNative: "x86_64-unknown-linux-gnu"},
		{name: "native option override", options: map[string]string{"native": "aarch64-apple-darwin"}, wantNative: "aarch64-apple-darwin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Parse(testCtx(), filepath.Join("..", "..", "matrix.star"), tt.options)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if plan.CheckCommand != "cargo check --target $TARGET" {
				t.Errorf("unexpected check command %q", plan.CheckCommand)
			}
			if plan.NativeTarget != tt.wantNative {
				t.Errorf("expected native target %q, got %q", tt.wantNative, plan.NativeTarget)
			}

			if len(plan.Combinations) != 2 {
				t.Fatalf("expected 2 combinations, got %d", len(plan.Combinations))
			}
			if plan.Combinations[0].Name != "no-default-features" || plan.Combinations[1].Name != "default-features" {
				t.Errorf("unexpected combination order: %v", plan.Combinations)
			}
			if plan.Combinations[0].HasTag(TagRequiresCross) {
				t.Error("the no-default-features combination must always run")
			}
			if !plan.Combinations[1].HasTag(TagRequiresCross) {
				t.Error("the default-features combination must only run for cross targets")
			}
		})
	}
}

func TestParse_Options(t *testing.T) {
	script := `
cmd = option("check_cmd", default="cargo check --target $TARGET", help="check command template")
check_command(cmd)
combination("basic")
`

	tests := []struct {
		name    string
		options map[string]string
		want    string
	}{
		{name: "default value", options: nil, want: "cargo check --target $TARGET"},
		{name: "override", options: map[string]string{"check_cmd": "cargo clippy"}, want: "cargo clippy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Parse(testCtx(), writeScript(t, script), tt.options)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if plan.CheckCommand != tt.want {
				t.Errorf("expected command %q, got %q", tt.want, plan.CheckCommand)
			}
			if _, ok := plan.Options["check_cmd"]; !ok {
				t.Error("expected the declared option to be reported")
			}
		})
	}
}

func TestParse_NativeTargetFromEnv(t *testing.T) {
	t.Setenv("NATIVE_TARGET", "aarch64-apple-darwin")

	plan, err := Parse(testCtx(), writeScript(t, `
check_command("cargo check")
combination("basic")
`), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if plan.NativeTarget != "aarch64-apple-darwin" {
		t.Errorf("expected native target from NATIVE_TARGET, got %q", plan.NativeTarget)
	}
}

func TestParse_ReadYaml(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "ci.yml"), []byte("check:\n  command: cargo check\n"), 0o644)
	if err != nil {
		t.Fatalf("failed to write yaml: %v", err)
	}

	path := filepath.Join(dir, "matrix.star")
	err = os.WriteFile(path, []byte(`
check_command(read_yaml("ci.yml", "check.command", "cargo build"))
combination("basic")
`), 0o644)
	if err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	plan, err := Parse(testCtx(), path, nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if plan.CheckCommand != "cargo check" {
		t.Errorf("expected command from yaml, got %q", plan.CheckCommand)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{
			name:   "missing check command",
			script: `combination("basic")`,
			want:   "did not declare a check command",
		},
		{
			name:   "no combinations",
			script: `check_command("cargo check")`,
			want:   "declared no combinations",
		},
		{
			name: "duplicate combination",
			script: `
check_command("cargo check")
combination("basic")
combination("basic")
`,
			want: "already declared",
		},
		{
			name: "duplicate check command",
			script: `
check_command("cargo check")
check_command("cargo clippy")
combination("basic")
`,
			want: "already declared",
		},
		{
			name: "empty combination name",
			script: `
check_command("cargo check")
combination("")
`,
			want: "must not be empty",
		},
		{
			name: "script error",
			script: `
check_command("cargo check")
error("broken matrix")
`,
			want: "broken matrix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(testCtx(), writeScript(t, tt.script), nil)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse(testCtx(), filepath.Join(t.TempDir(), "missing.star"), nil)
	if err == nil {
		t.Fatal("expected an error for a missing script")
	}
}
