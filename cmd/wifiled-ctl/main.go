// Wifiled-ctl finds and controls wifiled devices on the local network.
//
// Usage:
//
//	wifiled-ctl [command] [flags]
//
// Commands that talk to a device use --device when given, otherwise they
// look the device up over mDNS.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiled/internal/logging"
	"github.com/muurk/wifiled/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "wifiled-ctl",
	Short: "wifiled device control utility",
	Long: `Discover wifiled devices with mDNS, read and switch their LED, and follow
changes live.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); empty = silent")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wifiled-ctl %s (commit: %s) %s\n", version.Version, version.Commit, version.Platform())
	},
}
