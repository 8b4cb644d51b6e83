package probes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

// formatUsage renders "used / total (P%)" with binary units
func formatUsage(used, total uint64) string {
	if total == 0 {
		return ""
	}
	percent := float64(used) / float64(total) * 100
	return fmt.Sprintf("%s / %s (%.0f%%)", humanize.IBytes(used), humanize.IBytes(total), percent)
}

// NewMemoryProbe reports physical memory in use.
//
// Fallback order: gopsutil virtual memory, then proc/meminfo below Root.
func NewMemoryProbe(opts Options) sysinfo.Probe {
	return sysinfo.Chain(sysinfo.FieldMemory,
		liveOnly(opts, sysinfo.Strategy{
			Name: "gopsutil",
			Fn: func(ctx context.Context) (string, error) {
				vm, err := mem.VirtualMemoryWithContext(ctx)
				if err != nil {
					return "", fmt.Errorf("failed to read memory: %w", err)
				}
				return formatUsage(vm.Used, vm.Total), nil
			},
		}),
		sysinfo.Strategy{
			Name: "meminfo",
			Fn: func(context.Context) (string, error) {
				return procMemInfo(opts)
			},
		},
	)
}

// procMemInfo computes used memory as MemTotal minus MemAvailable
func procMemInfo(opts Options) (string, error) {
	f, err := os.Open(opts.path("proc", "meminfo"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	values := make(map[string]uint64)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		values[key] = kb * 1024
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	total := values["MemTotal"]
	if total == 0 {
		return "", errors.New("no MemTotal in meminfo")
	}
	available, ok := values["MemAvailable"]
	if !ok {
		available = values["MemFree"] + values["Buffers"] + values["Cached"]
	}
	if available > total {
		available = total
	}
	return formatUsage(total-available, total), nil
}

// NewDiskProbe reports usage of the filesystem holding opts.DiskPath,
// e.g. "120.5 GiB / 476.9 GiB (25%) - ext4".
func NewDiskProbe(opts Options) sysinfo.Probe {
	return sysinfo.Chain(sysinfo.FieldDisk,
		sysinfo.Strategy{
			Name: "statfs",
			Fn: func(ctx context.Context) (string, error) {
				path := opts.DiskPath
				if !opts.live() {
					path = opts.path(opts.DiskPath)
				}

				usage, err := disk.UsageWithContext(ctx, path)
				if err != nil {
					return "", fmt.Errorf("failed to read usage of %s: %w", path, err)
				}

				out := formatUsage(usage.Used, usage.Total)
				if out != "" && usage.Fstype != "" {
					out += " - " + usage.Fstype
				}
				return out, nil
			},
		},
	)
}

// defaultDiskPath is the system volume of the running platform
func defaultDiskPath() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + `\`
	}
	return "/"
}
