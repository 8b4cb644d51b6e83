package probes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

var (
	coreCountSuffix = regexp.MustCompile(`(?i)\s+\d+-core processor$`)
	clockSuffix     = regexp.MustCompile(`\s*@\s*[\d.]+\s*[GM]Hz$`)
	trademarkMarks  = strings.NewReplacer("(R)", "", "(r)", "", "(TM)", "", "(tm)", "")
)

// cleanCPUModel strips trademark marks and redundant suffixes from a
// vendor model string, e.g. "Intel(R) Core(TM) i7-8700 CPU @ 3.20GHz"
// becomes "Intel Core i7-8700".
func cleanCPUModel(model string) string {
	model = trademarkMarks.Replace(model)
	model = strings.Join(strings.Fields(model), " ")
	model = clockSuffix.ReplaceAllString(model, "")
	model = coreCountSuffix.ReplaceAllString(model, "")
	model = strings.TrimSuffix(model, " CPU")
	model = strings.TrimSuffix(model, " Processor")
	return strings.TrimSpace(model)
}

// formatCPU renders "Model (threads) @ X.YZ GHz", omitting unknown parts.
func formatCPU(model string, threads int, mhz float64) string {
	model = cleanCPUModel(model)
	if model == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(model)
	if threads > 0 {
		fmt.Fprintf(&b, " (%d)", threads)
	}
	if mhz > 0 {
		fmt.Fprintf(&b, " @ %.2f GHz", mhz/1000)
	}
	return b.String()
}

// NewCPUProbe reports the processor model, logical CPU count and maximum
// clock.
//
// Fallback order: gopsutil cpu info, ghw processor topology, then parsing
// proc/cpuinfo below Root.
func NewCPUProbe(opts Options) sysinfo.Probe {
	return sysinfo.Chain(sysinfo.FieldCPU,
		liveOnly(opts, sysinfo.Strategy{
			Name: "gopsutil",
			Fn: func(ctx context.Context) (string, error) {
				return gopsutilCPU(ctx, opts)
			},
		}),
		liveOnly(opts, sysinfo.Strategy{Name: "ghw", Fn: ghwCPU}),
		sysinfo.Strategy{
			Name: "cpuinfo",
			Fn: func(context.Context) (string, error) {
				return procCPUInfo(opts)
			},
		},
	)
}

func gopsutilCPU(ctx context.Context, opts Options) (string, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read cpu info: %w", err)
	}
	if len(infos) == 0 {
		return "", errors.New("no processors reported")
	}

	threads, err := cpu.CountsWithContext(ctx, true)
	if err != nil || threads <= 0 {
		threads = runtime.NumCPU()
	}

	// The sysfs maximum is stable; the reported MHz may be the current clock
	mhz, ok := cpufreqMaxMhz(opts)
	if !ok {
		for _, info := range infos {
			if info.Mhz > mhz {
				mhz = info.Mhz
			}
		}
	}

	return formatCPU(infos[0].ModelName, threads, mhz), nil
}

func ghwCPU(context.Context) (string, error) {
	info, err := ghw.CPU()
	if err != nil {
		return "", fmt.Errorf("failed to read processor topology: %w", err)
	}
	if len(info.Processors) == 0 {
		return "", errors.New("no processors reported")
	}
	return formatCPU(info.Processors[0].Model, runtime.NumCPU(), 0), nil
}

// procCPUInfo parses proc/cpuinfo. x86 kernels report "model name";
// many ARM kernels only report "Hardware" or "Model".
func procCPUInfo(opts Options) (string, error) {
	f, err := os.Open(opts.path("proc", "cpuinfo"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var model, hardware string
	var threads int
	var mhz float64

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "processor":
			threads++
		case "model name":
			if model == "" {
				model = value
			}
		case "Hardware", "Model":
			if hardware == "" {
				hardware = value
			}
		case "cpu MHz":
			if v, err := strconv.ParseFloat(value, 64); err == nil && v > mhz {
				mhz = v
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	if model == "" {
		model = hardware
	}
	if model == "" {
		return "", errors.New("no model in cpuinfo")
	}

	if maxMhz, ok := cpufreqMaxMhz(opts); ok {
		mhz = maxMhz
	}
	return formatCPU(model, threads, mhz), nil
}

// cpufreqMaxMhz reads the maximum frequency of cpu0 from sysfs (in kHz)
func cpufreqMaxMhz(opts Options) (float64, bool) {
	raw, err := readTrimmed(opts.path("sys", "devices", "system", "cpu", "cpu0", "cpufreq", "cpuinfo_max_freq"))
	if err != nil {
		return 0, false
	}
	khz, err := strconv.ParseFloat(raw, 64)
	if err != nil || khz <= 0 {
		return 0, false
	}
	return khz / 1000, true
}
