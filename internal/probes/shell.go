package probes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

// knownShells maps executable names to display names
var knownShells = map[string]string{
	"bash":          "bash",
	"zsh":           "zsh",
	"fish":          "fish",
	"sh":            "sh",
	"dash":          "dash",
	"ash":           "ash",
	"ksh":           "ksh",
	"mksh":          "mksh",
	"oksh":          "oksh",
	"tcsh":          "tcsh",
	"csh":           "csh",
	"nu":            "nushell",
	"elvish":        "elvish",
	"xonsh":         "xonsh",
	"ion":           "ion",
	"oils-for-unix": "oils",
	"osh":           "osh",
	"pwsh":          "PowerShell",
	"powershell":    "Windows PowerShell",
	"cmd":           "cmd",
	"busybox":       "busybox sh",
}

// shellName normalizes an executable name or path to a known shell.
// Login shells carry a leading dash ("-bash").
func shellName(exe string) (string, bool) {
	base := filepath.Base(strings.TrimSpace(exe))
	base = strings.TrimPrefix(base, "-")
	base = strings.TrimSuffix(strings.ToLower(base), ".exe")
	name, ok := knownShells[base]
	return name, ok
}

// NewShellProbe reports the interactive shell.
//
// Fallback order: the parent process when it is a known shell, then $SHELL.
func NewShellProbe(opts Options) sysinfo.Probe {
	return sysinfo.Chain(sysinfo.FieldShell,
		liveOnly(opts, sysinfo.Strategy{
			Name: "parent-process",
			Fn: func(ctx context.Context) (string, error) {
				parent, err := process.NewProcessWithContext(ctx, int32(os.Getppid()))
				if err != nil {
					return "", fmt.Errorf("failed to open parent process: %w", err)
				}
				name, err := parent.NameWithContext(ctx)
				if err != nil {
					return "", fmt.Errorf("failed to read parent process name: %w", err)
				}
				shell, ok := shellName(name)
				if !ok {
					return "", fmt.Errorf("parent process %q is not a known shell", name)
				}
				return shell, nil
			},
		}),
		sysinfo.Strategy{
			Name: "env",
			Fn: func(context.Context) (string, error) {
				env := os.Getenv("SHELL")
				if env == "" {
					return "", errors.New("SHELL not set")
				}
				if shell, ok := shellName(env); ok {
					return shell, nil
				}
				return filepath.Base(env), nil
			},
		},
	)
}
