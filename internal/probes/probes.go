// Package probes implements the host facet probes used to fill a
// sysinfo.SystemInfo snapshot. Each facet is an ordered chain of strategies;
// the fallback order of every chain is documented on its constructor.
package probes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/stone-age-io/hostfacts/internal/config"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"go.uber.org/zap"
)

// Options tunes the strategies. The zero value probes the live host.
type Options struct {
	// Root is the filesystem root used by file-based strategies ("/" by default)
	Root string

	// Home is the user home used for per-user package counts. It defaults
	// to the current user's home only when probing the live host.
	Home string

	// DiskPath is the mount point reported by the disk probe
	DiskPath string

	// NetworkInterface, when set, is preferred by the network probe
	NetworkInterface string
}

func (o Options) withDefaults() Options {
	if o.Root == "" {
		o.Root = "/"
	}
	// The invoking user's home only belongs to the live host
	if o.Home == "" && o.live() {
		if home, err := os.UserHomeDir(); err == nil {
			o.Home = home
		}
	}
	if o.DiskPath == "" {
		o.DiskPath = defaultDiskPath()
	}
	return o
}

// live reports whether strategies that cannot be redirected to Root
// (syscalls, process tables, exec) describe the same host.
func (o Options) live() bool {
	return filepath.Clean(o.Root) == "/"
}

// path joins p below Root.
func (o Options) path(p ...string) string {
	return filepath.Join(append([]string{o.Root}, p...)...)
}

// Default returns one probe per facet with the documented fallback order.
func Default(logger *zap.Logger, opts Options) []sysinfo.Probe {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()

	logger.Debug("Building facet probes",
		zap.String("root", opts.Root),
		zap.String("disk_path", opts.DiskPath),
		zap.String("network_interface", opts.NetworkInterface),
		zap.String("platform", runtime.GOOS))

	return []sysinfo.Probe{
		NewHostProbe(opts),
		NewKernelProbe(opts),
		NewUptimeProbe(opts),
		NewPackagesProbe(logger, opts, DefaultCounters()...),
		NewShellProbe(opts),
		NewDEProbe(opts),
		NewWMProbe(opts),
		NewCPUProbe(opts),
		NewGPUProbe(opts),
		NewMemoryProbe(opts),
		NewDiskProbe(opts),
		NewNetworkProbe(opts),
		NewUsernameProbe(opts),
		NewOSNameProbe(opts),
	}
}

// NewProvider builds a provider over the default probe set
func NewProvider(logger *zap.Logger, opts Options, providerOpts ...sysinfo.Option) *sysinfo.Provider {
	return sysinfo.NewProvider(logger, Default(logger, opts), providerOpts...)
}

// FromConfig builds a provider from the probes section of the config
func FromConfig(logger *zap.Logger, cfg config.ProbesConfig) *sysinfo.Provider {
	return NewProvider(logger, Options{
		Root:             cfg.Root,
		DiskPath:         cfg.DiskPath,
		NetworkInterface: cfg.NetworkInterface,
	}, sysinfo.WithProbeTimeout(cfg.Timeout), sysinfo.WithParallelism(cfg.Parallelism))
}

// readTrimmed reads a small text file and trims whitespace and NUL bytes.
func readTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Trim(string(data), "\x00")), nil
}

// envStrategy yields the first non-empty environment variable of keys.
func envStrategy(name string, keys ...string) sysinfo.Strategy {
	return sysinfo.Strategy{
		Name: name,
		Fn: func(context.Context) (string, error) {
			for _, k := range keys {
				if v := strings.TrimSpace(os.Getenv(k)); v != "" {
					return v, nil
				}
			}
			return "", fmt.Errorf("none of %s set", strings.Join(keys, ", "))
		},
	}
}
