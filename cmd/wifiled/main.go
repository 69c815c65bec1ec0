// Wifiled is the LED daemon: it joins or hosts a Wi-Fi network and serves
// a small HTTP API that switches an LED.
//
// Usage:
//
//	wifiled serve [flags]
//
// See 'wifiled serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wifiled/internal/config"
	"github.com/muurk/wifiled/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if config.IsConfigError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wifiled",
	Short: "Wi-Fi LED daemon",
	Long: `A daemon that connects to a Wi-Fi network (or hosts one) and serves an
HTTP API for switching an LED.

  GET  /      control page
  GET  /led   current state as {"is_on": bool}
  POST /led   set the state with {"is_on": bool}
  GET  /ws    WebSocket stream of state changes`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	registerServeFlags()
	// The config subcommands accept the same settings as serve.
	configCmd.PersistentFlags().AddFlagSet(serveCmd.Flags())
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wifiled %s (commit: %s) %s\n", version.Version, version.Commit, version.Platform())
	},
}
