package matrix

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// WriteReport persists the run report under dir as run-<id>.gob. The
// combined captured output, if any, is written next to it as an
// xz-compressed run-<id>.log.xz so failing CI logs stay small. Returns the
// path of the report file.
func WriteReport(dir string, report *RunReport) (string, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return "", eris.Wrapf(err, "failed to create report directory %s", dir)
	}

	path := filepath.Join(dir, fmt.Sprintf("run-%s.gob", report.ID))
	handle, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "failed to create %s", path)
	}
	defer handle.Close()

	encoder := gob.NewEncoder(handle)
	err = encoder.Encode(report)
	if err != nil {
		return "", eris.Wrapf(err, "failed to encode report %s", report.ID)
	}

	combined := report.CombinedOutput()
	if combined != "" {
		err = writeRunLog(filepath.Join(dir, fmt.Sprintf("run-%s.log.xz", report.ID)), combined)
		if err != nil {
			return "", err
		}
	}

	return path, nil
}

// ReadReport loads a report previously written by WriteReport.
func ReadReport(path string) (*RunReport, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s", path)
	}
	defer handle.Close()

	decoder := gob.NewDecoder(handle)

	var report RunReport
	err = decoder.Decode(&report)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to decode report %s", path)
	}

	return &report, nil
}

// ReadRunLog decompresses a run log written by WriteReport.
func ReadRunLog(path string) (string, error) {
	handle, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "failed to open %s", path)
	}
	defer handle.Close()

	reader, err := xz.NewReader(handle)
	if err != nil {
		return "", eris.Wrapf(err, "failed to read %s", path)
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return "", eris.Wrapf(err, "failed to decompress %s", path)
	}

	return string(content), nil
}

func writeRunLog(path, content string) error {
	handle, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", path)
	}
	defer handle.Close()

	writer, err := xz.NewWriter(handle)
	if err != nil {
		return eris.Wrapf(err, "failed to compress %s", path)
	}

	_, err = io.WriteString(writer, content)
	if err != nil {
		return eris.Wrapf(err, "failed to write %s", path)
	}

	return writer.Close()
}
