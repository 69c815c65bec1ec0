package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "wifiled"
	configFile = "config.yaml"
)

// Environment variables read by ApplyEnv.
const (
	EnvMode      = "WIFI_MODE"
	EnvSSID      = "SSID"
	EnvPassword  = "PASSWORD"
	EnvStaticIP  = "STATIC_IP"
	EnvGatewayIP = "GATEWAY_IP"
	EnvHostname  = "WIFILED_HOSTNAME"
	EnvInterface = "WIFILED_INTERFACE"
	EnvLEDGPIO   = "WIFILED_LED_GPIO"
	EnvLogLevel  = "WIFILED_LOG_LEVEL"
)

// GetConfigDir returns the OS-appropriate configuration directory for the application.
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load builds a configuration from defaults, a YAML file and the environment.
//
// If path is empty the default location is used and a missing file is not an
// error. An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		p, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) loadFile(path string, mustExist bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return NewError("config file", path, "malformed YAML", err)
	}
	return nil
}

// ApplyEnv overlays values from the environment. lookup is normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	var mode string
	set(EnvMode, &mode)
	if mode != "" {
		c.Mode = Mode(strings.ToLower(mode))
	}
	set(EnvSSID, &c.SSID)
	set(EnvPassword, &c.Password)
	set(EnvStaticIP, &c.StaticIP)
	set(EnvGatewayIP, &c.GatewayIP)
	set(EnvHostname, &c.Hostname)
	set(EnvInterface, &c.Interface)
	set(EnvLEDGPIO, &c.LED.GPIO)
	set(EnvLogLevel, &c.LogLevel)
}

// ApplyModeDefaults fills in the access-point address when none was given.
func (c *Config) ApplyModeDefaults() {
	if c.Mode != ModeAccessPoint || c.StaticIP != "" {
		return
	}
	c.StaticIP = DefaultAPStaticIP
	if c.GatewayIP == "" {
		c.GatewayIP = DefaultAPGatewayIP
	}
}

// Save writes the configuration to path atomically. The password is never
// written; it comes from the environment, a flag, or a prompt.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *c
	out.Password = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# wifiled configuration file
#
# The WiFi password is never stored here. Provide it with the PASSWORD
# environment variable, the --password flag, or --prompt-password.

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}
