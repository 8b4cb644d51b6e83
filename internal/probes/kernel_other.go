//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package probes

import "github.com/stone-age-io/hostfacts/internal/sysinfo"

func unameStrategies(Options) []sysinfo.Strategy {
	return nil
}

func unameMachine() string {
	return ""
}
