package display

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

const (
	colorReset = "\033[0m"
	colorLabel = "\033[1;36m"
	colorTitle = "\033[1;32m"
)

// ansiRegex matches ANSI color sequences for width measurement
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// visibleWidth is the terminal width of s excluding color sequences
func visibleWidth(s string) int {
	return runewidth.StringWidth(ansiRegex.ReplaceAllString(s, ""))
}

func colorize(text, color string, enabled bool) string {
	if !enabled {
		return text
	}
	return color + text + colorReset
}

// renderText writes the "user@hostname" header, a separator line and one
// aligned "Label: value" line per field.
func renderText(w io.Writer, info sysinfo.SystemInfo, fields []sysinfo.Field, opts Options) error {
	bw := bufio.NewWriter(w)

	user := textValue(info.Username)
	host := opts.Hostname
	if host == "" {
		host = UnknownText
	}
	header := colorize(user, colorTitle, opts.Color) + "@" + colorize(host, colorTitle, opts.Color)

	sep := opts.Separator
	if sep == "" {
		sep = "-"
	}
	headerWidth := visibleWidth(header)
	sepWidth := runewidth.StringWidth(sep)
	if sepWidth == 0 {
		sepWidth = 1
	}
	sepLine := strings.Repeat(sep, (headerWidth+sepWidth-1)/sepWidth)

	bw.WriteString(header + "\n")
	bw.WriteString(sepLine + "\n")

	labelWidth := 0
	for _, f := range fields {
		if n := runewidth.StringWidth(f.Label()); n > labelWidth {
			labelWidth = n
		}
	}

	for _, f := range fields {
		label := f.Label() + ":"
		pad := strings.Repeat(" ", labelWidth+1-runewidth.StringWidth(f.Label()))
		bw.WriteString(colorize(label, colorLabel, opts.Color) + pad + textValue(info.Get(f)) + "\n")
	}

	return bw.Flush()
}
