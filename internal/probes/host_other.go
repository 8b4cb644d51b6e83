//go:build !linux && !darwin

package probes

import "github.com/stone-age-io/hostfacts/internal/sysinfo"

func hostStrategies(opts Options) []sysinfo.Strategy {
	return []sysinfo.Strategy{ghwProductStrategy(opts)}
}
