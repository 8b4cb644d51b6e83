package probes

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/jaypipes/pcidb"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

// gpuVendors shortens pci.ids vendor names for known PCI vendor IDs
var gpuVendors = map[string]string{
	"10de": "NVIDIA",
	"1002": "AMD",
	"1022": "AMD",
	"8086": "Intel",
	"15ad": "VMware",
	"1af4": "Red Hat",
	"1234": "QEMU",
	"80ee": "VirtualBox",
	"1414": "Microsoft",
	"1a03": "ASPEED",
	"102b": "Matrox",
	"5143": "Qualcomm",
}

// gpuDevice identifies a display controller by PCI IDs and resolved names
type gpuDevice struct {
	vendorID    string
	productID   string
	vendorName  string
	productName string
}

// pciLookup resolves PCI IDs to vendor and product names
type pciLookup func(vendorID, productID string) (vendor, product string)

// normalizePCIID turns "0x10DE" into "10de"
func normalizePCIID(id string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "0x"))
}

// describeGPU renders a display controller as "Vendor Product". The
// marketing name in brackets is preferred over the chip codename, so
// "GA104 [GeForce RTX 3070]" becomes "GeForce RTX 3070".
func describeGPU(d gpuDevice) string {
	vendor := gpuVendors[normalizePCIID(d.vendorID)]
	if vendor == "" {
		vendor = cleanHardwareString(d.vendorName)
	}

	product := cleanHardwareString(d.productName)
	if open := strings.LastIndex(product, "["); open >= 0 {
		if end := strings.Index(product[open:], "]"); end > 1 {
			product = strings.TrimSpace(product[open+1 : open+end])
		}
	}
	if product == "" && d.productID != "" {
		product = "device " + normalizePCIID(d.productID)
	}

	switch {
	case vendor == "" && product == "":
		return ""
	case vendor == "":
		return product
	case product == "":
		return vendor
	case strings.HasPrefix(strings.ToLower(product), strings.ToLower(vendor)):
		return product
	default:
		return vendor + " " + product
	}
}

// joinGPUs renders every card, dropping duplicates of identical cards
func joinGPUs(devices []gpuDevice) string {
	seen := make(map[string]bool)
	names := []string{}
	for _, d := range devices {
		name := describeGPU(d)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// NewGPUProbe reports the display controllers. Headless hosts without
// any controller leave the facet unavailable.
//
// Fallback order: ghw graphics cards, then DRM cards under sys/class/drm
// below Root with names resolved from the PCI ID database.
func NewGPUProbe(opts Options) sysinfo.Probe {
	return sysinfo.Chain(sysinfo.FieldGPU,
		liveOnly(opts, sysinfo.Strategy{Name: "ghw", Fn: ghwGPU}),
		sysinfo.Strategy{
			Name: "drm",
			Fn: func(context.Context) (string, error) {
				return drmGPU(opts, pcidbLookup())
			},
		},
	)
}

func ghwGPU(context.Context) (string, error) {
	info, err := ghw.GPU()
	if err != nil {
		return "", fmt.Errorf("failed to read graphics cards: %w", err)
	}

	devices := []gpuDevice{}
	for _, card := range info.GraphicsCards {
		if card == nil || card.DeviceInfo == nil {
			continue
		}
		d := gpuDevice{}
		if v := card.DeviceInfo.Vendor; v != nil {
			d.vendorID, d.vendorName = v.ID, v.Name
		}
		if p := card.DeviceInfo.Product; p != nil {
			d.productID, d.productName = p.ID, p.Name
		}
		devices = append(devices, d)
	}
	if len(devices) == 0 {
		return "", errors.New("no graphics cards")
	}
	return joinGPUs(devices), nil
}

// drmGPU reads PCI IDs of DRM cards. Connector entries such as
// "card0-HDMI-A-1" are skipped.
func drmGPU(opts Options, lookup pciLookup) (string, error) {
	matches, err := filepath.Glob(opts.path("sys", "class", "drm", "card*"))
	if err != nil {
		return "", err
	}
	sort.Strings(matches)

	devices := []gpuDevice{}
	for _, card := range matches {
		if strings.Contains(filepath.Base(card), "-") {
			continue
		}
		vendorID, err := readTrimmed(filepath.Join(card, "device", "vendor"))
		if err != nil {
			continue
		}
		productID, _ := readTrimmed(filepath.Join(card, "device", "device"))

		d := gpuDevice{vendorID: normalizePCIID(vendorID), productID: normalizePCIID(productID)}
		if lookup != nil {
			d.vendorName, d.productName = lookup(d.vendorID, d.productID)
		}
		devices = append(devices, d)
	}
	if len(devices) == 0 {
		return "", errors.New("no graphics cards")
	}
	return joinGPUs(devices), nil
}

// pcidbLookup loads the PCI ID database once per call. A missing database
// yields a lookup that resolves nothing.
func pcidbLookup() pciLookup {
	db, err := pcidb.New()
	if err != nil {
		return nil
	}
	return func(vendorID, productID string) (string, string) {
		vendor, ok := db.Vendors[vendorID]
		if !ok {
			return "", ""
		}
		for _, p := range vendor.Products {
			if p.ID == productID {
				return vendor.Name, p.Name
			}
		}
		return vendor.Name, ""
	}
}
