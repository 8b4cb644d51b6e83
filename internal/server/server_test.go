package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stone-age-io/hostfacts/internal/config"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"go.uber.org/zap"
)

type fixedProbe struct {
	field sysinfo.Field
	value string
}

func (f fixedProbe) Field() sysinfo.Field { return f.field }

func (f fixedProbe) Probe(ctx context.Context) (string, error) {
	if f.value == "" {
		return "", sysinfo.ErrUnavailable
	}
	return f.value, nil
}

func newTestServer() *Server {
	provider := sysinfo.NewProvider(zap.NewNop(), []sysinfo.Probe{
		fixedProbe{field: sysinfo.FieldKernel, value: "6.8.0"},
		fixedProbe{field: sysinfo.FieldCPU, value: "AMD Ryzen 7 5800X (16) @ 4.85 GHz"},
		fixedProbe{field: sysinfo.FieldGPU},
	})
	cfg := config.ServerConfig{Listen: "127.0.0.1:0", ShutdownTimeout: time.Second}
	return New(zap.NewNop(), cfg, provider, nil)
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGetFacts(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		wantCode    int
		wantType    string
		wantContain string
	}{
		{"default json", "/facts", http.StatusOK, "application/json", `"kernel": "6.8.0"`},
		{"yaml", "/facts?format=yaml", http.StatusOK, "application/yaml", "kernel: 6.8.0"},
		{"text", "/facts?format=text", http.StatusOK, "text/plain", "Kernel:"},
		{"prom", "/facts?format=prom", http.StatusOK, "text/plain", `hostfacts_field_available{field="gpu"} 0`},
		{"selected fields", "/facts?fields=cpu", http.StatusOK, "application/json", `"cpu": "AMD Ryzen 7 5800X (16) @ 4.85 GHz"`},
		{"unknown format", "/facts?format=xml", http.StatusBadRequest, "application/json", "unknown format"},
		{"unknown field", "/facts?fields=cpu,bogus", http.StatusBadRequest, "application/json", "unknown field"},
		{"duplicate field", "/facts?fields=host,host", http.StatusBadRequest, "application/json", "duplicate field"},
		{"duplicate field prom", "/facts?format=prom&fields=cpu,kernel,cpu", http.StatusBadRequest, "application/json", "duplicate field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(), tt.url)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.wantType) {
				t.Errorf("Content-Type = %q, want prefix %q", ct, tt.wantType)
			}
			if !strings.Contains(rec.Body.String(), tt.wantContain) {
				t.Errorf("body does not contain %q:\n%s", tt.wantContain, rec.Body.String())
			}
		})
	}
}

func TestGetFacts_SelectedFieldsOnly(t *testing.T) {
	rec := get(t, newTestServer(), "/facts?fields=kernel,gpu")

	var facts map[string]*string
	if err := json.Unmarshal(rec.Body.Bytes(), &facts); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(facts) != 2 {
		t.Errorf("len(facts) = %d, want 2", len(facts))
	}
	if v, ok := facts["gpu"]; !ok || v != nil {
		t.Errorf("facts[gpu] = %v, want null", v)
	}
}

func TestGetField(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantCode  int
		wantValue *string
	}{
		{"available", "/facts/kernel", http.StatusOK, strPtr("6.8.0")},
		{"case insensitive", "/facts/KERNEL", http.StatusOK, strPtr("6.8.0")},
		{"unavailable", "/facts/gpu", http.StatusOK, nil},
		{"unknown", "/facts/bogus", http.StatusNotFound, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(), tt.url)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp struct {
				Field string  `json:"field"`
				Value *string `json:"value"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			switch {
			case tt.wantValue == nil && resp.Value != nil:
				t.Errorf("value = %q, want null", *resp.Value)
			case tt.wantValue != nil && (resp.Value == nil || *resp.Value != *tt.wantValue):
				t.Errorf("value = %v, want %q", resp.Value, *tt.wantValue)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	rec := get(t, newTestServer(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hostfacts_info{") {
		t.Errorf("metrics missing hostfacts_info:\n%s", rec.Body.String())
	}
}

func TestRun_Shutdown(t *testing.T) {
	s := newTestServer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func strPtr(s string) *string { return &s }
