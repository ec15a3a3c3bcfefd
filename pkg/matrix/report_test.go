package matrix

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleReport() *RunReport {
	return &RunReport{
		ID:     "V1StGXR8_Z5jdHi6B-myT",
		Target: "thumbv7m-none-eabi",
		Results: []CheckResult{
			{
				Timestamp:   time.Now().Truncate(time.Second),
				Target:      "thumbv7m-none-eabi",
				Combination: "no-default-features",
				Flags:       []string{"--no-default-features"},
				Success:     true,
				Output:      "    Checking example-crate v0.3.1\n",
			},
			{
				Timestamp:   time.Now().Truncate(time.Second),
				Target:      "thumbv7m-none-eabi",
				Combination: "default-features",
				Success:     false,
				ExitCode:    101,
				Output:      "error: could not compile\n",
			},
		},
		State:       StateFailed,
		FailedIndex: 1,
	}
}

func TestWriteReadReport(t *testing.T) {
	dir := t.TempDir()
	report := sampleReport()

	path, err := WriteReport(dir, report)
	if err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}

	loaded, err := ReadReport(path)
	if err != nil {
		t.Fatalf("ReadReport failed: %v", err)
	}

	if loaded.ID != report.ID || loaded.Target != report.Target {
		t.Errorf("report identity changed: %s/%s", loaded.ID, loaded.Target)
	}
	if loaded.State != StateFailed || loaded.FailedIndex != 1 {
		t.Errorf("expected Failed(1), got %s(%d)", loaded.State, loaded.FailedIndex)
	}
	if len(loaded.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(loaded.Results))
	}
	if loaded.Results[1].ExitCode != 101 {
		t.Errorf("expected exit code 101, got %d", loaded.Results[1].ExitCode)
	}
}

func TestWriteReport_CompressedLog(t *testing.T) {
	dir := t.TempDir()
	report := sampleReport()

	_, err := WriteReport(dir, report)
	if err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}

	logPath := filepath.Join(dir, "run-"+report.ID+".log.xz")
	content, err := ReadRunLog(logPath)
	if err != nil {
		t.Fatalf("ReadRunLog failed: %v", err)
	}

	if !strings.Contains(content, "==> default-features (thumbv7m-none-eabi)") {
		t.Errorf("log is missing the combination header:\n%s", content)
	}
	if !strings.Contains(content, "error: could not compile") {
		t.Errorf("log is missing the captured output:\n%s", content)
	}
}

func TestWriteReport_NoLogWithoutOutput(t *testing.T) {
	dir := t.TempDir()
	report := &RunReport{
		ID:          "silent",
		Target:      "cross-arch",
		Results:     []CheckResult{{Combination: "basic", Success: true}},
		State:       StateSucceeded,
		FailedIndex: -1,
	}

	_, err := WriteReport(dir, report)
	if err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}

	_, err = os.Stat(filepath.Join(dir, "run-silent.log.xz"))
	if !os.IsNotExist(err) {
		t.Errorf("expected no log file, stat returned %v", err)
	}
}
