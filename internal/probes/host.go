package probes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

var errNotLive = errors.New("root is not the live host")

// placeholderValues are firmware strings that carry no information
var placeholderValues = map[string]bool{
	"unknown":                 true,
	"to be filled by o.e.m.":  true,
	"to be filled by oem":     true,
	"system product name":     true,
	"system manufacturer":     true,
	"system version":          true,
	"default string":          true,
	"none":                    true,
	"not specified":           true,
	"not applicable":          true,
	"o.e.m.":                  true,
	"oem":                     true,
	"invalid":                 true,
	"type1productconfigid":    true,
	"all series":              true,
	"123456789":               true,
	"x.x":                     true,
	"0x0000":                  true,
	"chassis manufacture":     true,
	"base board manufacturer": true,
}

// cleanHardwareString drops firmware placeholders and collapses whitespace.
func cleanHardwareString(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if placeholderValues[strings.ToLower(s)] {
		return ""
	}
	return s
}

// joinVendorModel renders "Vendor Model Version" without repeating the
// vendor when the model already names it.
func joinVendorModel(vendor, model, version string) string {
	vendor = cleanHardwareString(vendor)
	model = cleanHardwareString(model)
	version = cleanHardwareString(version)

	if model == "" {
		return ""
	}

	parts := []string{}
	if vendor != "" && !strings.HasPrefix(strings.ToLower(model), strings.ToLower(vendor)) {
		parts = append(parts, vendor)
	}
	parts = append(parts, model)
	if version != "" && !strings.Contains(model, version) {
		parts = append(parts, version)
	}
	return strings.Join(parts, " ")
}

// liveOnly guards strategies that always read the running host.
func liveOnly(opts Options, s sysinfo.Strategy) sysinfo.Strategy {
	fn := s.Fn
	s.Fn = func(ctx context.Context) (string, error) {
		if !opts.live() {
			return "", errNotLive
		}
		return fn(ctx)
	}
	return s
}

// NewHostProbe reports the machine vendor and model.
//
// Fallback order (Linux): systemd-hostnamed over D-Bus, DMI product data
// through ghw, device-tree model. macOS uses the hw.model sysctl; other
// platforms use ghw only.
func NewHostProbe(opts Options) sysinfo.Probe {
	return sysinfo.Chain(sysinfo.FieldHost, hostStrategies(opts)...)
}

func ghwProductStrategy(opts Options) sysinfo.Strategy {
	return liveOnly(opts, sysinfo.Strategy{
		Name: "ghw-product",
		Fn: func(context.Context) (string, error) {
			product, err := ghw.Product()
			if err != nil {
				return "", fmt.Errorf("failed to read product info: %w", err)
			}
			return joinVendorModel(product.Vendor, product.Name, product.Version), nil
		},
	})
}
