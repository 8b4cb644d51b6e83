package sysinfo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// TestFieldKeys tests key round-tripping for every field
func TestFieldKeys(t *testing.T) {
	all := AllFields()
	if len(all) != 14 {
		t.Fatalf("AllFields() returned %d fields, want 14", len(all))
	}

	seen := make(map[string]bool)
	for _, f := range all {
		key := f.Key()
		if seen[key] {
			t.Errorf("duplicate key %q", key)
		}
		seen[key] = true

		parsed, err := ParseField(key)
		if err != nil {
			t.Errorf("ParseField(%q) error = %v", key, err)
		}
		if parsed != f {
			t.Errorf("ParseField(%q) = %v, want %v", key, parsed, f)
		}
		if f.Label() == "" {
			t.Errorf("field %s has no label", key)
		}
	}
}

// TestParseFields tests ordered parsing and unknown keys
func TestParseFields(t *testing.T) {
	got, err := ParseFields([]string{"os_name", "cpu", "gpu"})
	if err != nil {
		t.Fatalf("ParseFields() error = %v", err)
	}
	want := []Field{FieldOSName, FieldCPU, FieldGPU}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseFields()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	_, err = ParseFields([]string{"cpu", "theme"})
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("ParseFields() error = %v, want ErrUnknownField", err)
	}
}

// TestParseFields_Duplicates tests that a field may be selected only once
func TestParseFields_Duplicates(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		wantErr error
	}{
		{"distinct", []string{"host", "cpu", "gpu"}, nil},
		{"repeated", []string{"host", "host"}, ErrDuplicateField},
		{"repeated after normalization", []string{"cpu", " CPU "}, ErrDuplicateField},
		{"unknown wins over later duplicate", []string{"bogus", "host", "host"}, ErrUnknownField},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFields(tt.keys)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ParseFields(%v) error = %v", tt.keys, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseFields(%v) error = %v, want %v", tt.keys, err, tt.wantErr)
			}
		})
	}

	if err := CheckFields([]Field{FieldGPU, FieldGPU}); !errors.Is(err, ErrDuplicateField) {
		t.Errorf("CheckFields() error = %v, want ErrDuplicateField", err)
	}
	if err := CheckFields([]Field{Field(99)}); !errors.Is(err, ErrUnknownField) {
		t.Errorf("CheckFields() error = %v, want ErrUnknownField", err)
	}
}

// TestInvalidField tests out-of-range field handling
func TestInvalidField(t *testing.T) {
	f := Field(99)
	if f.Valid() {
		t.Error("Field(99).Valid() = true")
	}
	if got := (SystemInfo{Host: "x"}).Get(f); got != Unavailable {
		t.Errorf("Get(invalid) = %q, want Unavailable", got)
	}
	if !strings.Contains(f.Key(), "99") {
		t.Errorf("Key() = %q, want it to mention the index", f.Key())
	}
}

// TestFieldsAndMap tests generic field accessors
func TestFieldsAndMap(t *testing.T) {
	info := SystemInfo{Kernel: "Linux 6.8.0", CPU: "AMD Ryzen 7 5800X (16)"}

	kvs := info.Fields(FieldCPU, FieldGPU, FieldKernel)
	if len(kvs) != 3 {
		t.Fatalf("Fields() returned %d entries, want 3", len(kvs))
	}
	if kvs[0].Value != "AMD Ryzen 7 5800X (16)" || kvs[1].Value != Unavailable || kvs[2].Value != "Linux 6.8.0" {
		t.Errorf("Fields() = %+v", kvs)
	}

	m := info.Map()
	if len(m) != 14 {
		t.Errorf("Map() has %d keys, want 14", len(m))
	}
	if m["kernel"] != "Linux 6.8.0" {
		t.Errorf("Map()[kernel] = %q", m["kernel"])
	}
	if v, ok := m["gpu"]; !ok || v != Unavailable {
		t.Errorf("Map()[gpu] = %q, %v", v, ok)
	}
}

// TestChain tests strategy fallback ordering
func TestChain(t *testing.T) {
	failing := Strategy{Name: "failing", Fn: func(context.Context) (string, error) {
		return "", errors.New("not here")
	}}
	blank := Fixed("blank", "   ")
	good := Fixed("good", "  found \n")
	later := Fixed("later", "should not be reached")

	tests := []struct {
		name       string
		strategies []Strategy
		want       string
		wantErr    bool
		errText    string
	}{
		{
			name:       "first succeeds",
			strategies: []Strategy{good, later},
			want:       "found",
		},
		{
			name:       "falls back past failure and blank",
			strategies: []Strategy{failing, blank, good, later},
			want:       "found",
		},
		{
			name:       "all fail",
			strategies: []Strategy{failing, blank},
			wantErr:    true,
			errText:    "blank: empty result",
		},
		{
			name:       "no strategies",
			strategies: nil,
			wantErr:    true,
			errText:    "no strategies",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := Chain(FieldShell, tt.strategies...)
			if probe.Field() != FieldShell {
				t.Errorf("Field() = %v, want %v", probe.Field(), FieldShell)
			}

			got, err := probe.Probe(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Probe() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnavailable) {
					t.Errorf("Probe() error = %v, want ErrUnavailable", err)
				}
				if !strings.Contains(err.Error(), tt.errText) {
					t.Errorf("Probe() error = %v, want it to contain %q", err, tt.errText)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Probe() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestChain_CancelledContext tests that a done context stops the chain
func TestChain_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	probe := Chain(FieldCPU, Strategy{Name: "never", Fn: func(context.Context) (string, error) {
		called = true
		return "x", nil
	}})

	_, err := probe.Probe(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Probe() error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("strategy ran with a cancelled context")
	}
}

// TestFieldKeysOrder tests that FieldKeys follows declaration order
func TestFieldKeysOrder(t *testing.T) {
	keys := FieldKeys()
	all := AllFields()
	if len(keys) != len(all) {
		t.Fatalf("FieldKeys() returned %d keys, want %d", len(keys), len(all))
	}
	for i, f := range all {
		if keys[i] != f.Key() {
			t.Errorf("FieldKeys()[%d] = %q, want %q", i, keys[i], f.Key())
		}
	}

	if f, err := ParseField(" CPU "); err != nil || f != FieldCPU {
		t.Errorf("ParseField(\" CPU \") = %v, %v, want cpu", f, err)
	}
}

// TestChain_LateResult tests that a value produced after the deadline is
// discarded and later strategies are not tried
func TestChain_LateResult(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	fallbackRan := false
	probe := Chain(FieldGPU,
		Strategy{Name: "slow", Fn: func(context.Context) (string, error) {
			time.Sleep(50 * time.Millisecond)
			return "late value", nil
		}},
		Strategy{Name: "fallback", Fn: func(context.Context) (string, error) {
			fallbackRan = true
			return "fallback value", nil
		}},
	)

	got, err := probe.Probe(ctx)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Probe() error = %v, want ErrUnavailable wrapping DeadlineExceeded", err)
	}
	if got != Unavailable {
		t.Errorf("Probe() = %q, want Unavailable", got)
	}
	if fallbackRan {
		t.Error("fallback strategy ran after the deadline")
	}
}
