//go:build linux

package probes

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

const (
	hostnamedService = "org.freedesktop.hostname1"
	hostnamedPath    = "/org/freedesktop/hostname1"
)

func hostStrategies(opts Options) []sysinfo.Strategy {
	return []sysinfo.Strategy{
		liveOnly(opts, sysinfo.Strategy{Name: "hostnamed", Fn: hostnamedModel}),
		ghwProductStrategy(opts),
		{
			Name: "devicetree",
			Fn: func(context.Context) (string, error) {
				model, err := readTrimmed(opts.path("sys", "firmware", "devicetree", "base", "model"))
				if err != nil {
					return "", err
				}
				return cleanHardwareString(model), nil
			},
		},
	}
}

// hostnamedModel reads HardwareVendor and HardwareModel from
// systemd-hostnamed. Both properties need systemd 249 or later.
func hostnamedModel(ctx context.Context) (string, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(hostnamedService, dbus.ObjectPath(hostnamedPath))

	model, err := hostnamedProperty(ctx, obj, "HardwareModel")
	if err != nil {
		return "", err
	}
	vendor, _ := hostnamedProperty(ctx, obj, "HardwareVendor")

	return joinVendorModel(vendor, model, ""), nil
}

func hostnamedProperty(ctx context.Context, obj dbus.BusObject, name string) (string, error) {
	var v dbus.Variant
	err := obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, hostnamedService, name).Store(&v)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}

	s, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected type %T for %s", v.Value(), name)
	}
	return s, nil
}
