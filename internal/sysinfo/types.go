package sysinfo

import (
	"fmt"
	"strings"
)

// Unavailable is the value a field holds when its facet could not be
// determined. It is the zero value, so an empty SystemInfo is all-unavailable.
const Unavailable = ""

// SystemInfo is a point-in-time snapshot of host facts.
// Every field is either a non-empty human-readable value or Unavailable.
type SystemInfo struct {
	Host     string `json:"host"`     // Machine vendor and model
	Kernel   string `json:"kernel"`   // Kernel name and release
	Uptime   string `json:"uptime"`   // Formatted time since boot
	Packages string `json:"packages"` // Installed package counts per manager
	Shell    string `json:"shell"`    // Login or parent shell
	DE       string `json:"de"`       // Desktop environment
	WM       string `json:"wm"`       // Window manager or compositor
	CPU      string `json:"cpu"`      // Processor model, thread count and clock
	GPU      string `json:"gpu"`      // Graphics adapters
	Memory   string `json:"memory"`   // Used / total physical memory
	Disk     string `json:"disk"`     // Used / total space of the root filesystem
	Network  string `json:"network"`  // Primary interface and address
	Username string `json:"username"` // Current user
	OSName   string `json:"os_name"`  // Distribution or OS name and architecture
}

// Field identifies one facet of a SystemInfo.
type Field int

const (
	FieldHost Field = iota
	FieldKernel
	FieldUptime
	FieldPackages
	FieldShell
	FieldDE
	FieldWM
	FieldCPU
	FieldGPU
	FieldMemory
	FieldDisk
	FieldNetwork
	FieldUsername
	FieldOSName

	numFields
)

type fieldMeta struct {
	key   string
	label string
	ptr   func(*SystemInfo) *string
}

var fields = [numFields]fieldMeta{
	FieldHost:     {"host", "Host", func(s *SystemInfo) *string { return &s.Host }},
	FieldKernel:   {"kernel", "Kernel", func(s *SystemInfo) *string { return &s.Kernel }},
	FieldUptime:   {"uptime", "Uptime", func(s *SystemInfo) *string { return &s.Uptime }},
	FieldPackages: {"packages", "Packages", func(s *SystemInfo) *string { return &s.Packages }},
	FieldShell:    {"shell", "Shell", func(s *SystemInfo) *string { return &s.Shell }},
	FieldDE:       {"de", "DE", func(s *SystemInfo) *string { return &s.DE }},
	FieldWM:       {"wm", "WM", func(s *SystemInfo) *string { return &s.WM }},
	FieldCPU:      {"cpu", "CPU", func(s *SystemInfo) *string { return &s.CPU }},
	FieldGPU:      {"gpu", "GPU", func(s *SystemInfo) *string { return &s.GPU }},
	FieldMemory:   {"memory", "Memory", func(s *SystemInfo) *string { return &s.Memory }},
	FieldDisk:     {"disk", "Disk", func(s *SystemInfo) *string { return &s.Disk }},
	FieldNetwork:  {"network", "Network", func(s *SystemInfo) *string { return &s.Network }},
	FieldUsername: {"username", "User", func(s *SystemInfo) *string { return &s.Username }},
	FieldOSName:   {"os_name", "OS", func(s *SystemInfo) *string { return &s.OSName }},
}

// AllFields returns every field in declaration order.
func AllFields() []Field {
	out := make([]Field, 0, numFields)
	for f := Field(0); f < numFields; f++ {
		out = append(out, f)
	}
	return out
}

// FieldKeys returns the key of every field in declaration order.
func FieldKeys() []string {
	out := make([]string, 0, numFields)
	for f := Field(0); f < numFields; f++ {
		out = append(out, fields[f].key)
	}
	return out
}

// Valid reports whether f names a known field.
func (f Field) Valid() bool {
	return f >= 0 && f < numFields
}

// Key returns the stable snake_case key, e.g. "os_name".
func (f Field) Key() string {
	if !f.Valid() {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fields[f].key
}

// Label returns the human-readable label used by renderers.
func (f Field) Label() string {
	if !f.Valid() {
		return f.Key()
	}
	return fields[f].label
}

func (f Field) String() string {
	return f.Key()
}

// ParseField resolves a field key.
func ParseField(key string) (Field, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	for f := Field(0); f < numFields; f++ {
		if fields[f].key == key {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, key)
}

// ParseFields resolves a list of field keys, preserving order. Each field
// may appear once.
func ParseFields(keys []string) ([]Field, error) {
	out := make([]Field, 0, len(keys))
	for _, k := range keys {
		f, err := ParseField(k)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := CheckFields(out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckFields verifies that every field is valid and listed once.
func CheckFields(fields []Field) error {
	var seen [numFields]bool
	for _, f := range fields {
		if !f.Valid() {
			return fmt.Errorf("%w: %s", ErrUnknownField, f)
		}
		if seen[f] {
			return fmt.Errorf("%w: %q", ErrDuplicateField, f.Key())
		}
		seen[f] = true
	}
	return nil
}

// Get returns the value of field f.
func (s SystemInfo) Get(f Field) string {
	if !f.Valid() {
		return Unavailable
	}
	return *fields[f].ptr(&s)
}

// Available reports whether field f holds a value.
func (s SystemInfo) Available(f Field) bool {
	return s.Get(f) != Unavailable
}

func (s *SystemInfo) set(f Field, v string) {
	if f.Valid() {
		*fields[f].ptr(s) = v
	}
}

// KV is one field of a snapshot together with its value.
type KV struct {
	Field Field
	Value string
}

// Fields returns the requested fields in order. With no arguments every
// field is returned in declaration order.
func (s SystemInfo) Fields(order ...Field) []KV {
	if len(order) == 0 {
		order = AllFields()
	}
	out := make([]KV, 0, len(order))
	for _, f := range order {
		out = append(out, KV{Field: f, Value: s.Get(f)})
	}
	return out
}

// Map returns the snapshot keyed by field key.
func (s SystemInfo) Map() map[string]string {
	m := make(map[string]string, numFields)
	for f := Field(0); f < numFields; f++ {
		m[fields[f].key] = s.Get(f)
	}
	return m
}
