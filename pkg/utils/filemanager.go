// =============================================================================
// Laminar - File Manager Utility
// =============================================================================
//
// This module provides the file handling around a pipeline run:
//   - Input discovery (expanding a directory argument into batch files)
//   - Artifact output (receipt, payload URI text, frame PNGs)
//   - Error log generation for rejected batches
//
// WRITE STRATEGY:
//   - Every file is written to a temporary name in the output directory and
//     renamed into place, so a crash never leaves a truncated artifact
//   - Receipts are immutable: an existing receipt with the same name is left
//     alone when identical and is an error when it differs
//   - Artifact names are derived from the batch id, never from the clock
//
// =============================================================================

package utils

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
)

// BatchExtensions are the file extensions picked up when a directory is
// given as input.
var BatchExtensions = []string{".csv", ".json", ".xlsx"}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager writes the artifacts of generate runs.
type FileManager struct {
	// OutputDir receives every artifact.
	OutputDir string

	// WritePNG writes a PNG file for each frame that carries one.
	WritePNG bool
}

// NewFileManager creates a FileManager writing into outputDir.
func NewFileManager(outputDir string, writePNG bool) *FileManager {
	return &FileManager{OutputDir: outputDir, WritePNG: writePNG}
}

// Artifacts lists the files written for one batch.
type Artifacts struct {
	Receipt  string   `json:"receipt"`
	Payloads []string `json:"payloads"`
	Frames   []string `json:"frames,omitempty"`
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the output directory if it doesn't exist.
func (fm *FileManager) EnsureDirectories() error {
	if err := os.MkdirAll(fm.OutputDir, 0o755); err != nil {
		return errs.Wrap(err, errs.CodeIO, "failed to create output directory")
	}
	return nil
}

// =============================================================================
// INPUT DISCOVERY
// =============================================================================

// DiscoverInputFiles expands args into batch files. Files are kept as given;
// a directory contributes its batch files (non-recursive) in name order.
func DiscoverInputFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeIO, fmt.Sprintf("cannot access %s", arg))
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeIO, fmt.Sprintf("failed to scan %s", arg))
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() || !hasBatchExtension(e.Name()) {
				continue
			}
			found = append(found, filepath.Join(arg, e.Name()))
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

func hasBatchExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range BatchExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// =============================================================================
// ARTIFACT OUTPUT
// =============================================================================

// ArtifactPrefix is the file name prefix shared by a batch's artifacts.
func ArtifactPrefix(batchID string) string {
	if len(batchID) > 8 {
		batchID = batchID[:8]
	}
	return "laminar-" + batchID
}

// WriteReceipt writes receipt JSON under name.
func (fm *FileManager) WriteReceipt(name string, data []byte) (string, error) {
	path := filepath.Join(fm.OutputDir, name)
	if existing, err := os.ReadFile(path); err == nil {
		if bytes.Equal(existing, data) {
			return path, nil
		}
		return "", errs.New(errs.CodeIO, "refusing to overwrite existing receipt %s", path)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteOutputs writes the payload URI of every request and, when enabled,
// the PNG of every frame. requests and outputs are parallel slices in
// handoff order.
func (fm *FileManager) WriteOutputs(prefix string, requests []*types.PaymentRequest, outputs []*types.EncodedOutput) (payloads, frames []string, err error) {
	if len(requests) != len(outputs) {
		return nil, nil, errs.New(errs.CodeInternal, "%d requests but %d encoded outputs", len(requests), len(outputs))
	}
	split := len(requests) > 1

	for i, req := range requests {
		base := prefix
		if split {
			base = fmt.Sprintf("%s-split-%03d", prefix, i+1)
		}

		path := filepath.Join(fm.OutputDir, base+".zip321.txt")
		if err := writeFileAtomic(path, []byte(req.URI+"\n")); err != nil {
			return nil, nil, err
		}
		payloads = append(payloads, path)

		if !fm.WritePNG {
			continue
		}
		for _, f := range outputs[i].Frames {
			if len(f.PNG) == 0 {
				continue
			}
			path := filepath.Join(fm.OutputDir, fmt.Sprintf("%s-frame-%03d-of-%03d.png", base, f.Index, f.Total))
			if err := writeFileAtomic(path, f.PNG); err != nil {
				return nil, nil, err
			}
			frames = append(frames, path)
		}
	}
	return payloads, frames, nil
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Code    string
	Name    string
	Message string
}

// WriteErrorLog writes the findings of a rejected batch next to the other
// artifacts as <input base name>.errors.txt.
//
// RETURNS:
//   - The path to the error log file.
//   - An error if writing fails.
func (fm *FileManager) WriteErrorLog(inputPath string, entries []ErrorLogEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	logPath := filepath.Join(fm.OutputDir, base+".errors.txt")

	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)

	fmt.Fprintf(writer, "Laminar - Rejected Batch\n"+
		"Input:        %s\n"+
		"Total Errors: %d\n"+
		"================================================================================\n\n",
		inputPath, len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Error #%d\n"+
			"  Code:    %s (%s)\n"+
			"  Message: %s\n\n",
			i+1, entry.Name, entry.Code, entry.Message)
	}

	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", errs.Wrap(err, errs.CodeIO, "failed to build error log")
	}
	if err := writeFileAtomic(logPath, buf.Bytes()); err != nil {
		return "", err
	}
	return logPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// writeFileAtomic writes data to a temporary file beside path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errs.Wrap(err, errs.CodeIO, "failed to create "+path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.Wrap(err, errs.CodeIO, "failed to write "+path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errs.Wrap(err, errs.CodeIO, "failed to sync "+path)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(err, errs.CodeIO, "failed to close "+path)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errs.Wrap(err, errs.CodeIO, "failed to set permissions on "+path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errs.Wrap(err, errs.CodeIO, "failed to move "+path+" into place")
	}
	return nil
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
