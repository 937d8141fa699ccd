// Package config provides layered configuration management for snowhook.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the application name used in configuration paths.
const AppName = "snowhook"

// ConfigFileName is the name of the user configuration file (without extension).
const ConfigFileName = "config"

// ProjectConfigFileName is the name of the project configuration file (without extension).
const ProjectConfigFileName = "snowhook"

// Platform constants for OS detection.
const (
	osDarwin  = "darwin"
	osWindows = "windows"
)

// XDGPaths holds the resolved XDG base directory paths for the current platform.
type XDGPaths struct {
	ConfigHome string // User configuration directory
}

// ResolveXDGPaths returns the XDG base directory paths for the current platform.
func ResolveXDGPaths() XDGPaths {
	return XDGPaths{
		ConfigHome: resolveConfigHome(),
	}
}

// ConfigDir returns the application-specific configuration directory.
func (p XDGPaths) ConfigDir() string {
	return filepath.Join(p.ConfigHome, AppName)
}

// ConfigFilePath returns the full path to the configuration file.
func (p XDGPaths) ConfigFilePath() string {
	return filepath.Join(p.ConfigDir(), ConfigFileName+".yaml")
}

// resolveConfigHome returns the XDG_CONFIG_HOME equivalent for the current platform.
func resolveConfigHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}

	home := userHomeDir()

	switch runtime.GOOS {
	case osDarwin:
		// We use ~/.config for consistency with other CLI tools
		return filepath.Join(home, ".config")
	case osWindows:
		if appData := os.Getenv("APPDATA"); appData != "" {
			return appData
		}
		return filepath.Join(home, "AppData", "Roaming")
	default:
		return filepath.Join(home, ".config")
	}
}

// userHomeDir returns the user's home directory, or "" if unknown.
func userHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}
