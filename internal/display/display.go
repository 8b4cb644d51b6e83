// Package display renders SystemInfo snapshots as text, JSON, YAML or
// Prometheus exposition format.
package display

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatProm = "prom"
)

// Color modes
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// UnknownText is shown in text output for facets that are unavailable
const UnknownText = "Unknown"

// ErrUnknownFormat is returned for an unsupported output format
var ErrUnknownFormat = errors.New("unknown output format")

// Options controls rendering
type Options struct {
	Format string

	// Fields lists the fields to render, in order. Empty means every field.
	Fields []sysinfo.Field

	// Color enables ANSI colors in text output
	Color bool

	// Separator is repeated under the text header
	Separator string

	// Hostname completes the "user@hostname" text header
	Hostname string
}

// Render writes info to w in the requested format.
func Render(w io.Writer, info sysinfo.SystemInfo, opts Options) error {
	fields := opts.Fields
	if len(fields) == 0 {
		fields = sysinfo.AllFields()
	}
	if err := sysinfo.CheckFields(fields); err != nil {
		return err
	}

	switch opts.Format {
	case FormatText, "":
		return renderText(w, info, fields, opts)
	case FormatJSON:
		return renderJSON(w, info, fields)
	case FormatYAML:
		return renderYAML(w, info, fields)
	case FormatProm:
		return renderProm(w, info, fields)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

// RenderField writes a single field value followed by a newline.
// Unavailable facets print as UnknownText.
func RenderField(w io.Writer, info sysinfo.SystemInfo, f sysinfo.Field) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %s", sysinfo.ErrUnknownField, f)
	}
	_, err := fmt.Fprintln(w, textValue(info.Get(f)))
	return err
}

// ResolveColor decides whether text output is colored. In auto mode
// colors are used only for terminals and only when NO_COLOR is unset.
func ResolveColor(mode string, out *os.File) (bool, error) {
	switch mode {
	case ColorAlways:
		return true, nil
	case ColorNever:
		return false, nil
	case ColorAuto, "":
		if os.Getenv("NO_COLOR") != "" || out == nil {
			return false, nil
		}
		fd := out.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd), nil
	default:
		return false, fmt.Errorf("invalid color mode %q (must be auto, always or never)", mode)
	}
}

func textValue(v string) string {
	if v == sysinfo.Unavailable {
		return UnknownText
	}
	return v
}
