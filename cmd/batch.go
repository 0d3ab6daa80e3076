// =============================================================================
// Laminar - Batch Runner
// =============================================================================
//
// Shared plumbing for the validate, construct and generate commands.
//
// PROCESSING:
//   1. Expand the arguments into input files (directories are scanned)
//   2. Run the pipeline on every file concurrently, one goroutine per file
//   3. Collect the results over a channel and restore input order
//   4. Present each result in the current output mode
//
// Errors in one file do not affect the processing of others. The exit code
// is taken from the first failed file in input order.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/ingest"
	"github.com/ginjaninja78/laminar/internal/output"
	"github.com/ginjaninja78/laminar/internal/pipeline"
	"github.com/ginjaninja78/laminar/internal/types"
	"github.com/ginjaninja78/laminar/pkg/utils"
)

// stdinPath is the argument that reads a batch from standard input.
const stdinPath = "-"

// outcome is the result of processing one input file.
type outcome[T any] struct {
	Index  int
	Path   string
	Result T
	Err    error
}

// addInputFlags registers the flags shared by the batch commands.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "auto", "Input format: auto, csv, json or xlsx")
}

// resolveInputs expands command arguments into input paths. Standard input
// can be consumed once, so "-" may appear at most once.
func resolveInputs(args []string) ([]string, error) {
	var files []string
	stdinSeen := false
	for _, arg := range args {
		if arg == stdinPath {
			if stdinSeen {
				return nil, errs.New(errs.CodeConfig, "standard input (%q) given more than once", stdinPath)
			}
			stdinSeen = true
			files = append(files, stdinPath)
			continue
		}
		found, err := utils.DiscoverInputFiles([]string{arg})
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, errs.New(errs.CodeIO, "no batch files found (expected %v)", utils.BatchExtensions)
	}
	return files, nil
}

// prepare does the common setup of a batch command: session, inputs and
// format.
func prepare(cmd *cobra.Command, args []string) (*session, []string, ingest.Format, error) {
	s, err := newSession(cmd)
	if err != nil {
		return nil, nil, "", err
	}

	files, err := resolveInputs(args)
	if err != nil {
		s.fail(err, nil)
		return nil, nil, "", reported{err}
	}

	flag, _ := cmd.Flags().GetString("format")
	format, err := ingest.ParseFormat(flag)
	if err != nil {
		s.fail(err, nil)
		return nil, nil, "", reported{err}
	}
	return s, files, format, nil
}

// pipelineInput builds the pipeline input for one path.
func (s *session) pipelineInput(path string, format ingest.Format) (pipeline.Input, error) {
	in := pipeline.Input{Path: path, Format: format, Network: s.cfg.Network}
	if path != stdinPath {
		return in, nil
	}

	// Read one byte past the limit so an oversized stream is detectable.
	data, err := io.ReadAll(io.LimitReader(s.stdin, int64(s.cfg.Limits.MaxFileSize)+1))
	if err != nil {
		return in, errs.Wrap(err, errs.CodeIO, "failed to read batch from stdin")
	}
	in.Path = "stdin"
	in.Data = data
	return in, nil
}

// processFiles runs work on every file concurrently and returns the
// outcomes in input order.
func processFiles[T any](logger *logrus.Entry, files []string, work func(path string) (T, error)) []outcome[T] {
	logger.WithField("files", len(files)).Debug("Processing inputs")

	var wg sync.WaitGroup
	results := make(chan outcome[T], len(files))

	for i, path := range files {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			res, err := work(path)
			results <- outcome[T]{Index: i, Path: path, Result: res, Err: err}
		}(i, path)
	}

	// Close the results channel when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]outcome[T], len(files))
	for r := range results {
		if r.Err != nil {
			logger.WithFields(logrus.Fields{"input": r.Path, "code": errs.CodeOf(r.Err)}).Debug("Input failed")
		}
		ordered[r.Index] = r
	}
	return ordered
}

// present shows one outcome. Agent mode prints an envelope; operator mode
// calls render on success and the failure tables otherwise.
func (s *session) present(path string, multi bool, result any, warnings []types.Warning, err error, render func()) {
	if s.mode == output.ModeAgent {
		if err != nil {
			s.emit(output.Failure(err, warnings))
		} else {
			s.emit(output.Success(result, warnings))
		}
		return
	}

	if multi {
		fmt.Fprintf(s.stdout, "\n%s\n", text.Bold.Sprint(path))
	}
	if err != nil {
		s.fail(err, warnings)
		return
	}
	render()
	output.RenderWarnings(s.stdout, warnings)
}

// firstError returns the first failure in input order, marked as reported.
func firstError[T any](outcomes []outcome[T]) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return reported{o.Err}
		}
	}
	return nil
}
