package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/muurk/wifiled/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the given settings",
	Long: `Write the effective configuration (defaults, environment and flags) to the
config file. The password is never written.`,
	Example: `  wifiled config init --ssid home --interface wlan0
  wifiled config init --mode ap --ssid wifiled -c /etc/wifiled/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Defaults()
		cfg.ApplyEnv(os.LookupEnv)
		applyFlags(cmd, cfg)

		path := configPath
		if path == "" {
			p, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			path = p
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)
		cfg.ApplyModeDefaults()
		if cfg.Password != "" {
			cfg.Password = "********"
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(data))

		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr)
			for _, e := range unjoin(err) {
				fmt.Fprintf(os.Stderr, "invalid: %v\n", e)
			}
			return fmt.Errorf("configuration is not valid")
		}
		return nil
	},
}

// readPassword prompts on the controlling terminal without echo.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--prompt-password requires a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
