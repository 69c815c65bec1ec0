package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wifiled/internal/config"
	"github.com/muurk/wifiled/internal/daemon"
	"github.com/muurk/wifiled/internal/device"
	"github.com/muurk/wifiled/internal/logging"
	"github.com/muurk/wifiled/internal/wifi"
)

// Serve command and flags
var (
	configPath     string
	radioKind      string
	promptPassword bool
	flagMode       string
	flagSSID       string
	flagPassword   string
	flagStaticIP   string
	flagGatewayIP  string
	flagHostname   string
	flagInterface  string
	flagPort       int
	flagWorkers    int
	flagLEDGPIO    string
	flagMDNS       bool
	flagScan       bool
	flagLogLevel   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Wi-Fi and serve the LED API",
	Long: `Start the connectivity manager, bind IPv4 and serve HTTP with a fixed pool
of workers.

Settings are read from the config file, then the environment (WIFI_MODE,
SSID, PASSWORD, STATIC_IP, GATEWAY_IP, WIFILED_*), then flags. An invalid
configuration stops the daemon before anything starts.

The "host" radio uses an interface the operating system has already
associated. The "sim" radio associates in memory and listens on loopback.`,
	Example: `  # Join a network with DHCP
  SSID=home PASSWORD=secret123 wifiled serve

  # Static address on a specific interface
  wifiled serve --ssid home --prompt-password --interface wlan0 \
    --static-ip 192.168.0.50/24 --gateway-ip 192.168.0.1

  # Access-point mode (defaults to 192.168.13.37/24)
  wifiled serve --mode ap --ssid wifiled --password wifiled123

  # Try it without hardware
  wifiled serve --radio sim --ssid test --port 8080 --log-level debug`,
	RunE: runServe,
}

func registerServeFlags() {
	f := serveCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "Config file (default: OS config dir)")
	f.StringVar(&radioKind, "radio", "host", "Radio backend (host, sim)")
	f.BoolVar(&promptPassword, "prompt-password", false, "Read the Wi-Fi password from the terminal")
	f.StringVar(&flagMode, "mode", "", "Wi-Fi mode (station, ap)")
	f.StringVar(&flagSSID, "ssid", "", "Network name")
	f.StringVar(&flagPassword, "password", "", "Network password (empty = open)")
	f.StringVar(&flagStaticIP, "static-ip", "", "Static IPv4 address in CIDR form (empty = DHCP)")
	f.StringVar(&flagGatewayIP, "gateway-ip", "", "Gateway IPv4 address")
	f.StringVar(&flagHostname, "hostname", "", "DHCP and mDNS host name")
	f.StringVar(&flagInterface, "interface", "", "Host network interface")
	f.IntVar(&flagPort, "port", 0, "HTTP port")
	f.IntVar(&flagWorkers, "workers", 0, "Number of HTTP workers")
	f.StringVar(&flagLEDGPIO, "led-gpio", "", "GPIO pin driving the LED (e.g. GPIO17)")
	f.BoolVar(&flagMDNS, "mdns", true, "Advertise over mDNS")
	f.BoolVar(&flagScan, "scan", false, "Log visible networks once at startup")
	f.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	if promptPassword {
		pw, err := readPassword(fmt.Sprintf("Password for %q: ", cfg.SSID))
		if err != nil {
			return err
		}
		cfg.Password = pw
	}

	if err := logging.Initialize(cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	radio, err := newRadio(radioKind, cfg)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, radio, newIndicator(cfg))
	if err != nil {
		for _, e := range unjoin(err) {
			logging.Error("Invalid configuration", zap.Error(e))
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = d.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// applyFlags overlays flags the user set explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	str := func(name string, dst *string, v string) {
		if f.Changed(name) {
			*dst = v
		}
	}

	if f.Changed("mode") {
		cfg.Mode = config.Mode(flagMode)
	}
	str("ssid", &cfg.SSID, flagSSID)
	str("password", &cfg.Password, flagPassword)
	str("static-ip", &cfg.StaticIP, flagStaticIP)
	str("gateway-ip", &cfg.GatewayIP, flagGatewayIP)
	str("hostname", &cfg.Hostname, flagHostname)
	str("interface", &cfg.Interface, flagInterface)
	str("led-gpio", &cfg.LED.GPIO, flagLEDGPIO)
	str("log-level", &cfg.LogLevel, flagLogLevel)
	if f.Changed("port") {
		cfg.HTTP.Port = flagPort
	}
	if f.Changed("workers") {
		cfg.HTTP.Workers = flagWorkers
	}
	if f.Changed("mdns") {
		cfg.MDNS = flagMDNS
	}
	if f.Changed("scan") {
		cfg.ScanOnStart = flagScan
	}
}

func newRadio(kind string, cfg *config.Config) (wifi.Radio, error) {
	switch kind {
	case "host":
		return wifi.NewHostRadio(cfg.Interface, cfg.PollInterval), nil
	case "sim":
		return wifi.NewSimRadio(wifi.SimOptions{}), nil
	default:
		return nil, config.NewError("radio", kind, "must be \"host\" or \"sim\"", nil)
	}
}

// newIndicator always logs LED changes and drives a GPIO pin when one is
// configured and available.
func newIndicator(cfg *config.Config) device.Indicator {
	if cfg.LED.GPIO == "" {
		return device.LogIndicator{}
	}
	pin, err := device.NewGPIOIndicator(cfg.LED.GPIO)
	if err != nil {
		logging.Warn("GPIO indicator unavailable, logging LED changes only",
			zap.String("gpio", cfg.LED.GPIO),
			zap.Error(err),
		)
		return device.LogIndicator{}
	}
	return device.Multi{device.LogIndicator{}, pin}
}

func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
