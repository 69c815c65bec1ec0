// Package config loads and validates the startup configuration of the wifiled daemon.
//
// Configuration comes from three layers, lowest precedence first:
//
//  1. Built-in defaults (Defaults)
//  2. A YAML file, either given explicitly or found in the OS config directory
//  3. Environment variables (SSID, PASSWORD, STATIC_IP, GATEWAY_IP, ...)
//
// Command-line flags are applied on top by the cobra commands in cmd/wifiled.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/wifiled/config.yaml or $HOME/.config/wifiled/config.yaml
//   - macOS: $HOME/.config/wifiled/config.yaml
//   - Windows: %LOCALAPPDATA%\wifiled\config.yaml
//
// # Example File
//
//	mode: station
//	ssid: HomeNetwork
//	password: correct-horse
//	static_ip: 192.168.0.50/24
//	gateway_ip: 192.168.0.1
//	http:
//	  port: 80
//	  workers: 2
//	  timeouts:
//	    start_read_request: 5s
//	    read_request: 1s
//	    write: 1s
//	led:
//	  gpio: GPIO2
//
// # Errors
//
// Every validation failure is a *Error. A configuration error is never
// recoverable at runtime: the daemon reports it and exits before any network
// task starts.
package config
