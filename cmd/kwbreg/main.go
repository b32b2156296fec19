// Kwbreg is a register configuration utility for KWB heating devices.
//
// It resolves firmware versions against the supported configuration
// trees and assembles the register set for a device: universal
// registers, device-specific registers, and the registers of the
// installed equipment, filtered by access level.
//
// Usage:
//
//	kwbreg [command] [flags]
//
// See 'kwbreg --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mklatt/kwbreg/internal/logging"
	"github.com/mklatt/kwbreg/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kwbreg",
	Short: "KWB Register Configuration Utility",
	Long: `A utility for resolving KWB heating device register configurations.

Maps firmware versions to supported configuration trees, assembles the
register set for a device type and its installed equipment, and looks up
registers and value tables.`,
	Version: version.Version,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kwbreg %s\n", version.Full())
	},
}
