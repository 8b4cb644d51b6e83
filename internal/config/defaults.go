package config

import (
	"runtime"

	"github.com/spf13/viper"
)

// PlatformDefaults returns platform-specific default values
type PlatformDefaults struct {
	ConfigPath string
	LogFile    string
	DiskPath   string
}

// GetPlatformDefaults returns platform-specific defaults based on runtime.GOOS
func GetPlatformDefaults() PlatformDefaults {
	switch runtime.GOOS {
	case "windows":
		return PlatformDefaults{
			ConfigPath: `C:\ProgramData\Hostfacts\config.yaml`,
			LogFile:    `C:\ProgramData\Hostfacts\agent.log`,
			DiskPath:   `C:\`,
		}
	case "darwin":
		return PlatformDefaults{
			ConfigPath: "/usr/local/etc/hostfacts/config.yaml",
			LogFile:    "/usr/local/var/log/hostfacts/agent.log",
			DiskPath:   "/",
		}
	case "freebsd", "openbsd", "netbsd":
		return PlatformDefaults{
			ConfigPath: "/usr/local/etc/hostfacts/config.yaml",
			LogFile:    "/var/log/hostfacts/agent.log",
			DiskPath:   "/",
		}
	default:
		return PlatformDefaults{
			ConfigPath: "/etc/hostfacts/config.yaml",
			LogFile:    "/var/log/hostfacts/agent.log",
			DiskPath:   "/",
		}
	}
}

// GetDefaultConfigPath returns the platform-specific default config path
func GetDefaultConfigPath() string {
	return GetPlatformDefaults().ConfigPath
}

// UpdateConfigDefaults sets viper defaults that depend on the platform.
// It is called from setDefaults.
func UpdateConfigDefaults(v *viper.Viper) {
	defaults := GetPlatformDefaults()

	v.SetDefault("probes.disk_path", defaults.DiskPath)
	v.SetDefault("agent.log_file", defaults.LogFile)
}
