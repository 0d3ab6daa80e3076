// =============================================================================
// Laminar - Batch Ingestion (Sanitizer/Parser)
// =============================================================================
//
// This module turns raw input bytes into an ordered sequence of RawRecords.
// It is the first line of defense against hostile spreadsheet input:
//
//   - Size ceiling is enforced before any parsing begins
//   - UTF-8 byte-order marks are stripped, invalid UTF-8 is rejected
//   - Columns are resolved by alias, case-insensitively, in any order
//   - Cells starting with a formula prefix are flagged, never rewritten
//   - Row count above the ceiling aborts parsing (no truncation)
//
// SUPPORTED FORMATS:
//   csv   - header row required (csv.go)
//   json  - {version, network, recipients: [...]} (json.go)
//   xlsx  - first sheet or a named sheet, header row required (xlsx.go)
//
// The package performs no I/O except in ParseFile, which only reads the
// named file and hands the bytes to Parse.
//
// =============================================================================

package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/laminar/internal/config"
	"github.com/ginjaninja78/laminar/internal/errs"
	"github.com/ginjaninja78/laminar/internal/types"
)

// =============================================================================
// FORMAT
// =============================================================================

// Format identifies the input encoding of a batch.
type Format string

const (
	FormatAuto Format = "auto"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", errs.New(errs.CodeConfig, "unknown input format %q (expected auto, csv, json or xlsx)", s)
	}
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", ".tsv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatAuto
	}
}

// sniff guesses the format from content when nothing else is known.
func sniff(data []byte) Format {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return FormatXLSX
	}
	trimmed := bytes.TrimLeft(stripBOM(data), " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatCSV
}

// =============================================================================
// OPTIONS AND RESULT
// =============================================================================

// Options controls a single parse.
type Options struct {
	Limits config.Limits

	// Network is the caller-declared target network. A JSON batch declaring
	// a different network is rejected.
	Network types.Network

	// Comma is the CSV field separator ("," when zero).
	Comma rune

	// Sheet is the XLSX sheet name (first sheet when empty).
	Sheet string
}

// DefaultOptions returns options with compiled-in limits for network.
func DefaultOptions(network types.Network) Options {
	return Options{Limits: config.DefaultLimits(), Network: network}
}

// Batch is the parsed, still unvalidated, input.
type Batch struct {
	Format  Format
	Headers []string

	// DeclaredNetwork is the network stated inside a JSON batch, if any.
	DeclaredNetwork types.Network

	Records []types.RawRecord
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// ParseFile reads path and parses it. The size ceiling is checked against the
// file's size before its contents are read.
func ParseFile(path string, format Format, opts Options) (*Batch, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "failed to stat input file")
	}
	if info.IsDir() {
		return nil, errs.New(errs.CodeIO, "%s is a directory", path)
	}
	if opts.Limits.MaxFileSize > 0 && info.Size() > int64(opts.Limits.MaxFileSize) {
		return nil, errs.New(errs.CodeFileTooLarge, "input is %d bytes, maximum is %d", info.Size(), opts.Limits.MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "failed to read input file")
	}

	if format == FormatAuto {
		format = FormatFromPath(path)
	}
	return Parse(data, format, opts)
}

// Parse converts raw bytes into a Batch.
func Parse(data []byte, format Format, opts Options) (*Batch, error) {
	if opts.Limits.MaxFileSize > 0 && len(data) > opts.Limits.MaxFileSize {
		return nil, errs.New(errs.CodeFileTooLarge, "input is %d bytes, maximum is %d", len(data), opts.Limits.MaxFileSize)
	}
	if len(bytes.TrimSpace(stripBOM(data))) == 0 {
		return nil, errs.New(errs.CodeEmptyBatch, "input is empty")
	}

	if format == FormatAuto || format == "" {
		format = sniff(data)
	}

	switch format {
	case FormatCSV:
		return parseCSV(data, opts)
	case FormatJSON:
		return parseJSON(data, opts)
	case FormatXLSX:
		return parseXLSX(data, opts)
	default:
		return nil, errs.New(errs.CodeConfig, "unsupported input format %q", format)
	}
}
