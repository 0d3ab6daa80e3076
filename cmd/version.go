// =============================================================================
// Laminar - Version Command
// =============================================================================
//
// This file defines the 'version' command, which displays the application
// version and build information. The same version is recorded in every
// receipt as laminar_version.
//
// COMMAND USAGE:
//   laminar version
//
// OUTPUT:
//   Laminar
//   Version:    0.4.0
//   Build Date: 2026-01-01
//   Go Version: go1.24.11
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/laminar/internal/output"
)

// =============================================================================
// VERSION INFORMATION
// =============================================================================
// These variables are set at build time using ldflags.
// Example build command:
//   go build -ldflags "-X 'github.com/ginjaninja78/laminar/cmd.Version=0.4.0'"

// Version is the application version.
// Set at build time using ldflags.
var Version = "0.4.0"

// BuildDate is the date the application was built.
// Set at build time using ldflags.
var BuildDate = "unknown"

// versionInfo is the agent-mode form of the version output.
type versionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// =============================================================================
// VERSION COMMAND DEFINITION
// =============================================================================

// versionCmd represents the 'version' command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long:  `Display the application version, build date, and Go runtime version.`,
	Run: func(cmd *cobra.Command, args []string) {
		info := versionInfo{Version: Version, BuildDate: BuildDate, GoVersion: runtime.Version()}
		w := cmd.OutOrStdout()

		if json, _ := cmd.Flags().GetBool("json"); json {
			data, err := output.Success(info, nil).Marshal()
			if err == nil {
				fmt.Fprintln(w, string(data))
				return
			}
		}

		fmt.Fprintln(w, "Laminar")
		fmt.Fprintf(w, "Version:    %s\n", info.Version)
		fmt.Fprintf(w, "Build Date: %s\n", info.BuildDate)
		fmt.Fprintf(w, "Go Version: %s\n", info.GoVersion)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init registers the version command with the root command.
func init() {
	rootCmd.AddCommand(versionCmd)
}
