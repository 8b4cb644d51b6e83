package probes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

// processMatch maps a process name to the desktop component it indicates
type processMatch struct {
	process string
	name    string
}

// desktopProcesses are checked in order; the first running one wins
var desktopProcesses = []processMatch{
	{"plasmashell", "KDE Plasma"},
	{"gnome-shell", "GNOME"},
	{"cinnamon", "Cinnamon"},
	{"xfce4-session", "Xfce"},
	{"mate-session", "MATE"},
	{"lxqt-session", "LXQt"},
	{"lxsession", "LXDE"},
	{"budgie-panel", "Budgie"},
	{"cosmic-session", "COSMIC"},
	{"dde-desktop", "Deepin"},
	{"ukui-session", "UKUI"},
	{"enlightenment", "Enlightenment"},
	{"gala", "Pantheon"},
}

// windowManagerProcesses are checked in order; the first running one wins
var windowManagerProcesses = []processMatch{
	{"kwin_wayland", "KWin"},
	{"kwin_x11", "KWin"},
	{"kwin", "KWin"},
	{"gnome-shell", "Mutter"},
	{"mutter", "Mutter"},
	{"muffin", "Muffin"},
	{"cinnamon", "Muffin"},
	{"marco", "Marco"},
	{"xfwm4", "Xfwm4"},
	{"openbox", "Openbox"},
	{"Hyprland", "Hyprland"},
	{"sway", "Sway"},
	{"i3", "i3"},
	{"niri", "niri"},
	{"river", "river"},
	{"wayfire", "Wayfire"},
	{"labwc", "labwc"},
	{"bspwm", "bspwm"},
	{"awesome", "awesome"},
	{"dwm", "dwm"},
	{"herbstluftwm", "herbstluftwm"},
	{"qtile", "Qtile"},
	{"fluxbox", "Fluxbox"},
	{"icewm", "IceWM"},
	{"weston", "Weston"},
	{"gala", "Gala"},
	{"budgie-wm", "Budgie WM"},
	{"enlightenment", "Enlightenment"},
	{"compiz", "Compiz"},
}

// desktopAliases normalizes session identifiers to display names
var desktopAliases = map[string]string{
	"kde":            "KDE Plasma",
	"plasma":         "KDE Plasma",
	"plasmawayland":  "KDE Plasma",
	"gnome":          "GNOME",
	"gnome-classic":  "GNOME Classic",
	"x-cinnamon":     "Cinnamon",
	"cinnamon":       "Cinnamon",
	"xfce":           "Xfce",
	"xfce4":          "Xfce",
	"mate":           "MATE",
	"lxqt":           "LXQt",
	"lxde":           "LXDE",
	"budgie":         "Budgie",
	"budgie-desktop": "Budgie",
	"unity":          "Unity",
	"deepin":         "Deepin",
	"cosmic":         "COSMIC",
	"pantheon":       "Pantheon",
	"ukui":           "UKUI",
	"enlightenment":  "Enlightenment",
}

// standaloneWMs appear in session variables but are not desktop environments
var standaloneWMs = map[string]bool{
	"hyprland": true,
	"sway":     true,
	"i3":       true,
	"niri":     true,
	"river":    true,
	"wayfire":  true,
	"labwc":    true,
	"bspwm":    true,
	"dwm":      true,
	"awesome":  true,
	"qtile":    true,
	"openbox":  true,
}

// normalizeDesktop resolves a session variable such as "ubuntu:GNOME".
func normalizeDesktop(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	parts := strings.Split(raw, ":")
	for _, p := range parts {
		key := strings.ToLower(filepath.Base(strings.TrimSpace(p)))
		if alias, ok := desktopAliases[key]; ok {
			return alias, true
		}
	}

	last := filepath.Base(strings.TrimSpace(parts[len(parts)-1]))
	if last == "" || last == "." || standaloneWMs[strings.ToLower(last)] {
		return "", false
	}
	return last, true
}

// NewDEProbe reports the desktop environment.
//
// Fallback order: XDG_CURRENT_DESKTOP, DESKTOP_SESSION, GDMSESSION,
// KDE_FULL_SESSION, a scan for known desktop processes, then the platform
// desktop (Aqua on macOS, Fluent on Windows). Headless Linux hosts have none.
func NewDEProbe(opts Options) sysinfo.Probe {
	strategies := []sysinfo.Strategy{}
	for _, key := range []string{"XDG_CURRENT_DESKTOP", "DESKTOP_SESSION", "GDMSESSION"} {
		strategies = append(strategies, sessionVarStrategy(key))
	}
	strategies = append(strategies,
		sysinfo.Strategy{
			Name: "KDE_FULL_SESSION",
			Fn: func(context.Context) (string, error) {
				if strings.EqualFold(os.Getenv("KDE_FULL_SESSION"), "true") {
					return "KDE Plasma", nil
				}
				return "", errors.New("not a KDE session")
			},
		},
		processScanStrategy(opts, "desktop-process", desktopProcesses),
		platformStrategy("platform", map[string]string{
			"darwin":  "Aqua",
			"windows": "Fluent",
		}),
	)
	return sysinfo.Chain(sysinfo.FieldDE, strategies...)
}

// NewWMProbe reports the window manager or compositor, with the session
// type appended on Linux when it is known, e.g. "KWin (Wayland)".
//
// Fallback order: compositor socket variables, a scan for known window
// manager processes, then the platform compositor.
func NewWMProbe(opts Options) sysinfo.Probe {
	return sysinfo.Chain(sysinfo.FieldWM,
		sysinfo.Strategy{
			Name: "compositor-env",
			Fn: func(context.Context) (string, error) {
				hints := []processMatch{
					{"HYPRLAND_INSTANCE_SIGNATURE", "Hyprland"},
					{"SWAYSOCK", "Sway"},
					{"I3SOCK", "i3"},
					{"NIRI_SOCKET", "niri"},
				}
				for _, h := range hints {
					if os.Getenv(h.process) != "" {
						return withSessionType(h.name), nil
					}
				}
				return "", errors.New("no compositor socket variable set")
			},
		},
		sysinfo.Strategy{
			Name: "wm-process",
			Fn: func(ctx context.Context) (string, error) {
				name, err := processScanStrategy(opts, "wm-process", windowManagerProcesses).Fn(ctx)
				if err != nil {
					return "", err
				}
				return withSessionType(name), nil
			},
		},
		platformStrategy("platform", map[string]string{
			"darwin":  "Quartz Compositor",
			"windows": "DWM",
		}),
	)
}

// withSessionType appends the XDG session type when it is set
func withSessionType(name string) string {
	switch strings.ToLower(os.Getenv("XDG_SESSION_TYPE")) {
	case "wayland":
		return name + " (Wayland)"
	case "x11":
		return name + " (X11)"
	default:
		return name
	}
}

func sessionVarStrategy(key string) sysinfo.Strategy {
	return sysinfo.Strategy{
		Name: key,
		Fn: func(context.Context) (string, error) {
			if name, ok := normalizeDesktop(os.Getenv(key)); ok {
				return name, nil
			}
			return "", fmt.Errorf("%s does not name a desktop", key)
		},
	}
}

// platformStrategy yields a fixed value on the listed platforms
func platformStrategy(name string, values map[string]string) sysinfo.Strategy {
	return sysinfo.Strategy{
		Name: name,
		Fn: func(context.Context) (string, error) {
			if v, ok := values[runtime.GOOS]; ok {
				return v, nil
			}
			return "", fmt.Errorf("no default for %s", runtime.GOOS)
		},
	}
}

// processScanStrategy returns the first match whose process is running
func processScanStrategy(opts Options, name string, matches []processMatch) sysinfo.Strategy {
	return liveOnly(opts, sysinfo.Strategy{
		Name: name,
		Fn: func(ctx context.Context) (string, error) {
			running, err := runningProcessNames(ctx)
			if err != nil {
				return "", err
			}
			for _, m := range matches {
				if running[m.process] {
					return m.name, nil
				}
			}
			return "", errors.New("no known process running")
		},
	})
}

// runningProcessNames lists process names. Processes that exit or deny
// access during the scan are skipped.
func runningProcessNames(ctx context.Context) (map[string]bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	names := make(map[string]bool, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		names[name] = true
	}
	return names, nil
}
