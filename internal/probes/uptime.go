package probes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

// NewUptimeProbe reports time since boot, e.g. "2 days, 5 hours, 30 mins".
//
// Fallback order: gopsutil host uptime, then /proc/uptime.
func NewUptimeProbe(opts Options) sysinfo.Probe {
	return sysinfo.Chain(sysinfo.FieldUptime,
		liveOnly(opts, sysinfo.Strategy{
			Name: "gopsutil",
			Fn: func(ctx context.Context) (string, error) {
				secs, err := host.UptimeWithContext(ctx)
				if err != nil {
					return "", err
				}
				return FormatUptime(time.Duration(secs) * time.Second), nil
			},
		}),
		sysinfo.Strategy{
			Name: "procfs",
			Fn: func(context.Context) (string, error) {
				raw, err := readTrimmed(opts.path("proc", "uptime"))
				if err != nil {
					return "", err
				}
				d, err := parseProcUptime(raw)
				if err != nil {
					return "", err
				}
				return FormatUptime(d), nil
			},
		},
	)
}

// parseProcUptime parses the first column of /proc/uptime ("12345.67 54321.00")
func parseProcUptime(raw string) (time.Duration, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty uptime")
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse uptime %q: %w", fields[0], err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("negative uptime %v", secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// FormatUptime renders a duration as days, hours and minutes.
func FormatUptime(uptime time.Duration) string {
	days := int(uptime.Hours() / 24)
	hours := int(uptime.Hours()) % 24
	mins := int(uptime.Minutes()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d day%s", days, plural(days)))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d hour%s", hours, plural(hours)))
	}
	if mins > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d min%s", mins, plural(mins)))
	}

	return strings.Join(parts, ", ")
}

func plural(count int) string {
	if count != 1 {
		return "s"
	}
	return ""
}
