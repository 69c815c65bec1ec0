package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/muurk/wifiled/internal/client"
	"github.com/muurk/wifiled/internal/discovery"
	"github.com/muurk/wifiled/internal/ui"
)

// Device command flags
var (
	deviceAddr   string
	deviceName   string
	scanTimeout  time.Duration
	outputFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&deviceAddr, "device", "d", "", "Device address host[:port] (skips discovery)")
	rootCmd.PersistentFlags().StringVarP(&deviceName, "name", "n", "", "mDNS instance name to look up")
	rootCmd.PersistentFlags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "Discovery timeout")

	scanCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format (table, json)")
	statusCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format (table, json)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(ledCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(dashboardCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for wifiled devices on the network",
	Long: `Scan for wifiled devices using mDNS/DNS-SD discovery.

Devices advertise an _http._tcp service with "device=wifiled" in the TXT
record. Other HTTP services on the network are ignored.`,
	Example: `  wifiled-ctl scan
  wifiled-ctl scan --timeout 10s --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		scanner := &discovery.Scanner{Timeout: scanTimeout}
		if outputFormat == "table" {
			fmt.Printf("Scanning for wifiled devices (timeout: %s)...\n\n", scanTimeout)
		}
		devices, err := scanner.ScanForDevices(ctx)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		if outputFormat == "json" {
			return printJSON(devices)
		}
		fmt.Println(ui.RenderDevices(devices))
		if len(devices) == 0 {
			fmt.Println("\nTroubleshooting:")
			fmt.Println("  - Check that the daemon runs with mDNS enabled (--mdns)")
			fmt.Println("  - Make sure you are on the same network segment as the device")
			fmt.Println("  - In access-point mode, join the device's network first")
			fmt.Println("  - Use --device to give the address directly")
		}
		return nil
	},
}

var ledCmd = &cobra.Command{
	Use:   "led on|off|toggle",
	Short: "Switch the LED",
	Example: `  wifiled-ctl led on --device 192.168.13.37
  wifiled-ctl led toggle --name kitchen`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off", "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		c, label, err := resolveClient(ctx)
		if err != nil {
			return err
		}

		var on bool
		switch strings.ToLower(args[0]) {
		case "on":
			on = true
		case "off":
			on = false
		case "toggle":
			current, err := c.GetLED(ctx)
			if err != nil {
				return failure("Could not read LED state", err)
			}
			on = !current
		default:
			return fmt.Errorf("unknown state %q (want on, off or toggle)", args[0])
		}

		if err := c.SetLED(ctx, on); err != nil {
			return failure("Could not switch LED", err)
		}
		fmt.Println(ui.NewSuccessResult("LED switched "+onOff(on),
			ui.Detail{Key: "Device", Value: label},
		).Render())
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the LED state of a device",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		c, label, err := resolveClient(ctx)
		if err != nil {
			return err
		}
		on, err := c.GetLED(ctx)
		if err != nil {
			return failure("Could not read LED state", err)
		}

		if outputFormat == "json" {
			return printJSON(client.LEDState{IsOn: on})
		}
		fmt.Printf("%s  %s\n", ui.RenderLamp(on), label)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print LED changes as they happen",
	Long: `Follow the device's WebSocket stream and print one line per change.
Stops on Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		c, label, err := resolveClient(ctx)
		if err != nil {
			return err
		}
		states, errs, err := c.Watch(ctx)
		if err != nil {
			return failure("Could not open watch stream", err)
		}

		fmt.Printf("Watching %s (Ctrl-C to stop)\n", label)
		for on := range states {
			fmt.Printf("%s  led %s\n", time.Now().Format("15:04:05"), onOff(on))
		}
		select {
		case err := <-errs:
			return failure("Watch stream ended", err)
		default:
			return nil
		}
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Interactive LED dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		c, _, err := resolveClient(ctx)
		stop()
		if err != nil {
			return err
		}

		program := tea.NewProgram(ui.NewDashboard(c, c.BaseURL), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("dashboard failed: %w", err)
		}
		return nil
	},
}

// resolveClient returns a client for --device, for the --name instance, or
// for the only device discovered.
func resolveClient(ctx context.Context) (*client.Client, string, error) {
	if deviceAddr != "" {
		host, port, err := splitHostPort(deviceAddr)
		if err != nil {
			return nil, "", err
		}
		return client.New(host, port), net.JoinHostPort(host, strconv.Itoa(port)), nil
	}

	scanner := &discovery.Scanner{Timeout: scanTimeout}
	if deviceName != "" {
		d, err := scanner.WaitForDevice(ctx, deviceName)
		if err != nil {
			return nil, "", err
		}
		return client.NewWithURL(d.BaseURL()), d.String(), nil
	}

	devices, err := scanner.ScanForDevices(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("scan failed: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, "", fmt.Errorf("no wifiled devices found; use --device or --name")
	case 1:
		return client.NewWithURL(devices[0].BaseURL()), devices[0].String(), nil
	default:
		names := make([]string, len(devices))
		for i, d := range devices {
			names[i] = d.Instance
		}
		return nil, "", fmt.Errorf("found %d devices (%s); choose one with --name", len(devices), strings.Join(names, ", "))
	}
}

// splitHostPort accepts "host" or "host:port"; the port defaults to 80.
func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, discovery.DefaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	return host, port, nil
}

func failure(title string, err error) error {
	fmt.Fprintln(os.Stderr, ui.NewFailureResult(title, err, client.ShortMessage(err)).Render())
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
