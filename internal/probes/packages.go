package probes

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"go.uber.org/zap"
)

// Counter counts the packages installed by one package manager.
// A manager that is not present reports zero without an error.
type Counter struct {
	Name  string
	Count func(ctx context.Context, opts Options) (int, error)
}

// DefaultCounters returns every supported package manager in display order.
func DefaultCounters() []Counter {
	return []Counter{
		{Name: "dpkg", Count: countDpkg},
		{Name: "pacman", Count: countPacman},
		{Name: "rpm", Count: countRpm},
		{Name: "apk", Count: countApk},
		{Name: "xbps", Count: countXbps},
		{Name: "flatpak", Count: countFlatpak},
		{Name: "snap", Count: countSnap},
		{Name: "brew", Count: countBrew},
	}
}

// NewPackagesProbe reports installed package counts, e.g. "1843 (dpkg), 12 (flatpak)".
//
// Every counter runs; managers with packages are listed in counter order.
// The facet is unavailable when no counter finds anything.
func NewPackagesProbe(logger *zap.Logger, opts Options, counters ...Counter) sysinfo.Probe {
	if logger == nil {
		logger = zap.NewNop()
	}

	return sysinfo.Chain(sysinfo.FieldPackages, sysinfo.Strategy{
		Name: "counters",
		Fn: func(ctx context.Context) (string, error) {
			var parts []string
			for _, c := range counters {
				n, err := c.Count(ctx, opts)
				if err != nil {
					logger.Debug("Package counter failed",
						zap.String("manager", c.Name),
						zap.Error(err))
					continue
				}
				if n > 0 {
					parts = append(parts, fmt.Sprintf("%d (%s)", n, c.Name))
				}
			}
			if len(parts) == 0 {
				return "", errors.New("no package manager found")
			}
			return strings.Join(parts, ", "), nil
		},
	})
}

// countDirs counts subdirectories of path, skipping names in exclude.
// A missing path counts as zero.
func countDirs(path string, exclude ...string) (int, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() && !skip[e.Name()] {
			n++
		}
	}
	return n, nil
}

// countLines counts lines of path accepted by match. A missing path counts as zero.
func countLines(path string, match func(line string) bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	n := 0
	for scanner.Scan() {
		if match(scanner.Text()) {
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return n, nil
}

// countDpkg counts stanzas of /var/lib/dpkg/status that are fully installed
func countDpkg(_ context.Context, opts Options) (int, error) {
	return countLines(opts.path("var", "lib", "dpkg", "status"), func(line string) bool {
		return strings.TrimSpace(line) == "Status: install ok installed"
	})
}

// countApk counts package records in the apk installed database
func countApk(_ context.Context, opts Options) (int, error) {
	return countLines(opts.path("lib", "apk", "db", "installed"), func(line string) bool {
		return strings.HasPrefix(line, "P:")
	})
}

// countXbps counts pkgver keys in the xbps package database
func countXbps(_ context.Context, opts Options) (int, error) {
	matches, err := filepath.Glob(opts.path("var", "db", "xbps", "pkgdb-*.plist"))
	if err != nil || len(matches) == 0 {
		return 0, err
	}
	return countLines(matches[0], func(line string) bool {
		return strings.Contains(line, "<key>pkgver</key>")
	})
}

// countRpm asks rpm itself; the rpmdb formats are not stable enough to parse.
func countRpm(ctx context.Context, opts Options) (int, error) {
	if _, err := os.Stat(opts.path("var", "lib", "rpm")); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	if !opts.live() {
		return 0, errNotLive
	}
	if _, err := exec.LookPath("rpm"); err != nil {
		return 0, nil
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "rpm", "-qa")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("rpm -qa failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	n := 0
	for _, line := range strings.Split(stdout.String(), "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n, nil
}

// countFlatpak counts system and per-user apps and runtimes
func countFlatpak(_ context.Context, opts Options) (int, error) {
	dirs := []string{
		opts.path("var", "lib", "flatpak", "app"),
		opts.path("var", "lib", "flatpak", "runtime"),
	}
	if opts.Home != "" {
		dirs = append(dirs,
			filepath.Join(opts.Home, ".local", "share", "flatpak", "app"),
			filepath.Join(opts.Home, ".local", "share", "flatpak", "runtime"))
	}

	total := 0
	for _, d := range dirs {
		n, err := countDirs(d)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// countSnap counts mounted snaps
func countSnap(_ context.Context, opts Options) (int, error) {
	return countDirs(opts.path("snap"), "bin")
}

// countBrew counts Homebrew kegs in any known Cellar
func countBrew(_ context.Context, opts Options) (int, error) {
	cellars := []string{
		opts.path("opt", "homebrew", "Cellar"),
		opts.path("usr", "local", "Cellar"),
		opts.path("home", "linuxbrew", ".linuxbrew", "Cellar"),
	}

	total := 0
	for _, c := range cellars {
		n, err := countDirs(c)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
