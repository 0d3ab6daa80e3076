// =============================================================================
// Laminar - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Laminar CLI application. It
// initializes the Cobra CLI framework and delegates command execution to the
// cmd package.
//
// USAGE:
//   laminar validate <input>...   - Validate batch files
//   laminar construct <input>...  - Print ZIP-321 payment requests
//   laminar generate <input>...   - Build requests, QR frames and receipts
//   laminar receipts list|show    - Browse the receipt archive
//   laminar version               - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : The pipeline stages (not for external import)
//   - pkg/           : Shared file handling utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/laminar/cmd"
)

// main is the entry point of the application.
func main() {
	cmd.Execute()
}
