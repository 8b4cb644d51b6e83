package probes

import (
	"context"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

// NewKernelProbe reports the kernel name and release, e.g. "Linux 6.8.0-45-generic".
//
// Fallback order: uname(2) where available, then gopsutil's kernel version.
func NewKernelProbe(opts Options) sysinfo.Probe {
	strategies := unameStrategies(opts)
	strategies = append(strategies, liveOnly(opts, sysinfo.Strategy{
		Name: "gopsutil",
		Fn: func(ctx context.Context) (string, error) {
			version, err := host.KernelVersionWithContext(ctx)
			if err != nil {
				return "", err
			}
			return formatKernel(kernelName(runtime.GOOS), version), nil
		},
	}))
	return sysinfo.Chain(sysinfo.FieldKernel, strategies...)
}

// kernelName maps GOOS to the kernel's own name
func kernelName(goos string) string {
	switch goos {
	case "linux", "android":
		return "Linux"
	case "darwin", "ios":
		return "Darwin"
	case "freebsd":
		return "FreeBSD"
	case "openbsd":
		return "OpenBSD"
	case "netbsd":
		return "NetBSD"
	case "windows":
		return "WIN32_NT"
	default:
		return goos
	}
}

func formatKernel(name, release string) string {
	release = strings.TrimSpace(release)
	if release == "" {
		return ""
	}
	if name == "" {
		return release
	}
	return name + " " + release
}
