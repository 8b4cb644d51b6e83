package probes

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/acobaugh/osrelease"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

// archNames maps GOARCH to the names uname reports
var archNames = map[string]string{
	"amd64":   "x86_64",
	"386":     "i686",
	"arm64":   "aarch64",
	"arm":     "armv7l",
	"ppc64le": "ppc64le",
	"riscv64": "riscv64",
	"s390x":   "s390x",
}

func archName(goarch string) string {
	if name, ok := archNames[goarch]; ok {
		return name
	}
	return goarch
}

// hostArch reports the machine architecture. The live host answers through
// uname so a 32-bit build on a 64-bit kernel names the kernel's machine.
func hostArch(opts Options) string {
	if opts.live() {
		if machine := unameMachine(); machine != "" {
			return machine
		}
	}
	return archName(runtime.GOARCH)
}

// withArch appends the machine architecture to an OS name
func withArch(name, arch string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return name + " " + arch
}

// osReleaseName prefers PRETTY_NAME, else NAME with VERSION_ID
func osReleaseName(release map[string]string) string {
	if pretty := strings.TrimSpace(release["PRETTY_NAME"]); pretty != "" {
		return pretty
	}
	name := strings.TrimSpace(release["NAME"])
	if name == "" {
		return ""
	}
	if version := strings.TrimSpace(release["VERSION_ID"]); version != "" {
		return name + " " + version
	}
	return name
}

// NewOSNameProbe reports the operating system name with its architecture,
// e.g. "Debian GNU/Linux 12 (bookworm) x86_64".
//
// Fallback order: etc/os-release and usr/lib/os-release below Root, the
// platform reported by gopsutil, then the Go platform name.
func NewOSNameProbe(opts Options) sysinfo.Probe {
	return sysinfo.Chain(sysinfo.FieldOSName,
		sysinfo.Strategy{
			Name: "os-release",
			Fn: func(context.Context) (string, error) {
				var lastErr error
				for _, p := range []string{opts.path("etc", "os-release"), opts.path("usr", "lib", "os-release")} {
					release, err := osrelease.ReadFile(p)
					if err != nil {
						lastErr = err
						continue
					}
					if name := osReleaseName(release); name != "" {
						return withArch(name, hostArch(opts)), nil
					}
					lastErr = fmt.Errorf("%s has no name", p)
				}
				if lastErr == nil {
					lastErr = errors.New("no os-release file")
				}
				return "", lastErr
			},
		},
		liveOnly(opts, sysinfo.Strategy{
			Name: "platform-info",
			Fn: func(ctx context.Context) (string, error) {
				info, err := host.InfoWithContext(ctx)
				if err != nil {
					return "", fmt.Errorf("failed to read platform info: %w", err)
				}
				return withArch(platformName(info.Platform, info.PlatformVersion), hostArch(opts)), nil
			},
		}),
		sysinfo.Strategy{
			Name: "goos",
			Fn: func(context.Context) (string, error) {
				return withArch(platformName(runtime.GOOS, ""), hostArch(opts)), nil
			},
		},
	)
}

// platformName renders a platform identifier for display
func platformName(platform, version string) string {
	platform = strings.TrimSpace(platform)
	switch strings.ToLower(platform) {
	case "":
		return ""
	case "darwin":
		platform = "macOS"
	case "freebsd":
		platform = "FreeBSD"
	case "openbsd":
		platform = "OpenBSD"
	case "netbsd":
		platform = "NetBSD"
	case "linux":
		platform = "Linux"
	case "windows":
		platform = "Windows"
	}
	if version = strings.TrimSpace(version); version != "" {
		return platform + " " + version
	}
	return platform
}
