//go:build linux || darwin || freebsd || netbsd || openbsd

package probes

import (
	"context"
	"strings"

	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"golang.org/x/sys/unix"
)

func unameStrategies(opts Options) []sysinfo.Strategy {
	return []sysinfo.Strategy{
		liveOnly(opts, sysinfo.Strategy{
			Name: "uname",
			Fn: func(context.Context) (string, error) {
				var uts unix.Utsname
				if err := unix.Uname(&uts); err != nil {
					return "", err
				}
				return formatKernel(unix.ByteSliceToString(uts.Sysname[:]), unix.ByteSliceToString(uts.Release[:])), nil
			},
		}),
	}
}

// unameMachine returns the machine field of uname, or "" when it cannot be read
func unameMachine() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return strings.TrimSpace(unix.ByteSliceToString(uts.Machine[:]))
}
