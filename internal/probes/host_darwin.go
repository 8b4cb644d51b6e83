//go:build darwin

package probes

import (
	"context"

	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"golang.org/x/sys/unix"
)

func hostStrategies(opts Options) []sysinfo.Strategy {
	return []sysinfo.Strategy{
		liveOnly(opts, sysinfo.Strategy{
			Name: "sysctl",
			Fn: func(context.Context) (string, error) {
				model, err := unix.Sysctl("hw.model")
				if err != nil {
					return "", err
				}
				return joinVendorModel("Apple", model, ""), nil
			},
		}),
	}
}
