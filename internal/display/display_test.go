package display

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"gopkg.in/yaml.v3"
)

var testInfo = sysinfo.SystemInfo{
	Username: "alice",
	OSName:   "Debian GNU/Linux 12 (bookworm) x86_64",
	CPU:      "AMD Ryzen 7 5800X (16) @ 4.85 GHz",
	Packages: "1843 (dpkg), 12 (flatpak)",
}

var testFields = []sysinfo.Field{sysinfo.FieldOSName, sysinfo.FieldCPU, sysinfo.FieldGPU}

// TestRenderText tests plain text output
func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, testInfo, Options{Format: FormatText, Fields: testFields, Hostname: "box"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := "alice@box\n" +
		"---------\n" +
		"OS:  Debian GNU/Linux 12 (bookworm) x86_64\n" +
		"CPU: AMD Ryzen 7 5800X (16) @ 4.85 GHz\n" +
		"GPU: Unknown\n"
	if buf.String() != want {
		t.Errorf("Render() =\n%s\nwant\n%s", buf.String(), want)
	}
}

// TestRenderText_Header tests header fallbacks and separators
func TestRenderText_Header(t *testing.T) {
	tests := []struct {
		name      string
		info      sysinfo.SystemInfo
		hostname  string
		separator string
		wantLines []string
	}{
		{
			name:      "unknown user and host",
			info:      sysinfo.SystemInfo{},
			wantLines: []string{"Unknown@Unknown", strings.Repeat("-", 15)},
		},
		{
			name:      "multi-character separator",
			info:      testInfo,
			hostname:  "box",
			separator: "=-",
			wantLines: []string{"alice@box", "=-=-=-=-=-"},
		},
		{
			name:      "wide runes",
			info:      sysinfo.SystemInfo{Username: "ユーザー"},
			hostname:  "h",
			wantLines: []string{"ユーザー@h", strings.Repeat("-", 10)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			opts := Options{Fields: []sysinfo.Field{sysinfo.FieldHost}, Hostname: tt.hostname, Separator: tt.separator}
			if err := Render(&buf, tt.info, opts); err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			lines := strings.Split(buf.String(), "\n")
			for i, want := range tt.wantLines {
				if lines[i] != want {
					t.Errorf("line %d = %q, want %q", i, lines[i], want)
				}
			}
		})
	}
}

// TestRenderText_Color tests that colors do not change the visible layout
func TestRenderText_Color(t *testing.T) {
	var plain, colored bytes.Buffer
	opts := Options{Fields: testFields, Hostname: "box"}
	if err := Render(&plain, testInfo, opts); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	opts.Color = true
	if err := Render(&colored, testInfo, opts); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if !strings.Contains(colored.String(), "\033[") {
		t.Error("colored output has no ANSI sequences")
	}
	if stripped := ansiRegex.ReplaceAllString(colored.String(), ""); stripped != plain.String() {
		t.Errorf("colored output without ANSI =\n%s\nwant\n%s", stripped, plain.String())
	}
}

// TestRenderJSON tests JSON output order and null handling
func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, testInfo, Options{Format: FormatJSON, Fields: testFields}); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(got) != 3 {
		t.Errorf("got %d keys, want 3", len(got))
	}
	if got["cpu"] != testInfo.CPU {
		t.Errorf("cpu = %v", got["cpu"])
	}
	if v, ok := got["gpu"]; !ok || v != nil {
		t.Errorf("gpu = %v, %v, want null", v, ok)
	}

	out := buf.String()
	if !(strings.Index(out, `"os_name"`) < strings.Index(out, `"cpu"`) && strings.Index(out, `"cpu"`) < strings.Index(out, `"gpu"`)) {
		t.Errorf("keys not in field order:\n%s", out)
	}
}

// TestMarshalJSON_AllFields tests the default field set
func TestMarshalJSON_AllFields(t *testing.T) {
	data, err := MarshalJSON(testInfo, nil)
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	var got map[string]*string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(got) != len(sysinfo.AllFields()) {
		t.Errorf("got %d keys, want %d", len(got), len(sysinfo.AllFields()))
	}
	if got["packages"] == nil || *got["packages"] != testInfo.Packages {
		t.Errorf("packages = %v", got["packages"])
	}
	if got["kernel"] != nil {
		t.Errorf("kernel = %q, want null", *got["kernel"])
	}
}

// TestRenderYAML tests YAML output
func TestRenderYAML(t *testing.T) {
	info := testInfo
	info.Uptime = "12"

	var buf bytes.Buffer
	fields := []sysinfo.Field{sysinfo.FieldOSName, sysinfo.FieldUptime, sysinfo.FieldGPU}
	if err := Render(&buf, info, Options{Format: FormatYAML, Fields: fields}); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	var got map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
	if got["os_name"] != info.OSName {
		t.Errorf("os_name = %v", got["os_name"])
	}
	if got["uptime"] != "12" {
		t.Errorf("uptime = %#v, want the string \"12\"", got["uptime"])
	}
	if v, ok := got["gpu"]; !ok || v != nil {
		t.Errorf("gpu = %v, %v, want null", v, ok)
	}
	if !strings.HasPrefix(buf.String(), "os_name:") {
		t.Errorf("first key is not os_name:\n%s", buf.String())
	}
}

// TestRenderProm tests Prometheus exposition output
func TestRenderProm(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, testInfo, Options{Format: FormatProm, Fields: testFields}); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# TYPE hostfacts_info gauge",
		`os_name="Debian GNU/Linux 12 (bookworm) x86_64"`,
		`cpu="AMD Ryzen 7 5800X (16) @ 4.85 GHz"`,
		"# TYPE hostfacts_field_available gauge",
		`hostfacts_field_available{field="cpu"} 1`,
		`hostfacts_field_available{field="gpu"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// TestRender_Errors tests invalid formats and fields
func TestRender_Errors(t *testing.T) {
	var buf bytes.Buffer

	err := Render(&buf, testInfo, Options{Format: "xml"})
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Render() error = %v, want ErrUnknownFormat", err)
	}

	err = Render(&buf, testInfo, Options{Format: FormatJSON, Fields: []sysinfo.Field{sysinfo.Field(42)}})
	if !errors.Is(err, sysinfo.ErrUnknownField) {
		t.Errorf("Render() error = %v, want ErrUnknownField", err)
	}
}

// TestRender_DuplicateFields tests that no format repeats a key or label
func TestRender_DuplicateFields(t *testing.T) {
	dup := []sysinfo.Field{sysinfo.FieldHost, sysinfo.FieldCPU, sysinfo.FieldHost}

	for _, format := range []string{FormatText, FormatJSON, FormatYAML, FormatProm} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			err := Render(&buf, testInfo, Options{Format: format, Fields: dup})
			if !errors.Is(err, sysinfo.ErrDuplicateField) {
				t.Errorf("Render() error = %v, want ErrDuplicateField", err)
			}
			if buf.Len() != 0 {
				t.Errorf("Render() wrote output on error:\n%s", buf.String())
			}
		})
	}

	if _, err := MarshalJSON(testInfo, dup); !errors.Is(err, sysinfo.ErrDuplicateField) {
		t.Errorf("MarshalJSON() error = %v, want ErrDuplicateField", err)
	}
}

// TestRenderField tests single field output
func TestRenderField(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderField(&buf, testInfo, sysinfo.FieldCPU); err != nil {
		t.Fatalf("RenderField() error = %v", err)
	}
	if buf.String() != testInfo.CPU+"\n" {
		t.Errorf("RenderField() = %q", buf.String())
	}

	buf.Reset()
	if err := RenderField(&buf, testInfo, sysinfo.FieldWM); err != nil {
		t.Fatalf("RenderField() error = %v", err)
	}
	if buf.String() != "Unknown\n" {
		t.Errorf("RenderField() = %q, want Unknown", buf.String())
	}
}

// TestResolveColor tests color mode resolution
func TestResolveColor(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Close()

	t.Setenv("NO_COLOR", "")

	tests := []struct {
		mode    string
		noColor string
		want    bool
		wantErr bool
	}{
		{mode: ColorAlways, want: true},
		{mode: ColorNever, want: false},
		{mode: ColorAuto, want: false},
		{mode: ColorAlways, noColor: "1", want: true},
		{mode: "rainbow", wantErr: true},
	}

	for _, tt := range tests {
		t.Setenv("NO_COLOR", tt.noColor)
		got, err := ResolveColor(tt.mode, f)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveColor(%q) error = %v, wantErr %v", tt.mode, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveColor(%q) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}
