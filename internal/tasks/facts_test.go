package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"go.uber.org/zap"
)

type staticProbe struct {
	field sysinfo.Field
	value string
}

func (s staticProbe) Field() sysinfo.Field { return s.field }

func (s staticProbe) Probe(ctx context.Context) (string, error) {
	if s.value == "" {
		return "", sysinfo.ErrUnavailable
	}
	return s.value, nil
}

func testProvider() *sysinfo.Provider {
	return sysinfo.NewProvider(zap.NewNop(), []sysinfo.Probe{
		staticProbe{field: sysinfo.FieldHost, value: "ThinkPad X1"},
		staticProbe{field: sysinfo.FieldKernel, value: "6.8.0"},
		staticProbe{field: sysinfo.FieldGPU},
	})
}

func TestCollectFacts(t *testing.T) {
	executor := NewExecutor(zap.NewNop(), testProvider(), time.Second)

	fields := []sysinfo.Field{sysinfo.FieldHost, sysinfo.FieldKernel, sysinfo.FieldGPU}
	msg, err := executor.CollectFacts(context.Background(), "dev-1", fields)
	if err != nil {
		t.Fatalf("CollectFacts() error = %v", err)
	}

	if msg.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want dev-1", msg.DeviceID)
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Errorf("Timestamp parse error: %v", err)
	}
	if len(msg.Unavailable) != 1 || msg.Unavailable[0] != "gpu" {
		t.Errorf("Unavailable = %v, want [gpu]", msg.Unavailable)
	}

	var facts map[string]*string
	if err := json.Unmarshal(msg.Facts, &facts); err != nil {
		t.Fatalf("facts are not valid JSON: %v", err)
	}
	if facts["host"] == nil || *facts["host"] != "ThinkPad X1" {
		t.Errorf("facts[host] = %v, want ThinkPad X1", facts["host"])
	}
	if v, ok := facts["gpu"]; !ok || v != nil {
		t.Errorf("facts[gpu] = %v, want null", v)
	}
}

func TestCollectFacts_AllFieldsByDefault(t *testing.T) {
	executor := NewExecutor(nil, testProvider(), 0)

	msg, err := executor.CollectFacts(context.Background(), "dev-1", nil)
	if err != nil {
		t.Fatalf("CollectFacts() error = %v", err)
	}

	var facts map[string]*string
	if err := json.Unmarshal(msg.Facts, &facts); err != nil {
		t.Fatalf("facts are not valid JSON: %v", err)
	}
	if len(facts) != len(sysinfo.AllFields()) {
		t.Errorf("len(facts) = %d, want %d", len(facts), len(sysinfo.AllFields()))
	}
	// host and kernel are the only probes that succeed
	if want := len(sysinfo.AllFields()) - 2; len(msg.Unavailable) != want {
		t.Errorf("len(Unavailable) = %d, want %d", len(msg.Unavailable), want)
	}
}

func TestCollectFacts_Errors(t *testing.T) {
	t.Run("no provider", func(t *testing.T) {
		executor := NewExecutor(nil, nil, 0)
		_, err := executor.CollectFacts(context.Background(), "dev-1", nil)
		if !errors.Is(err, sysinfo.ErrAcquire) {
			t.Errorf("error = %v, want ErrAcquire", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		executor := NewExecutor(nil, testProvider(), 0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := executor.CollectFacts(ctx, "dev-1", nil)
		if !errors.Is(err, sysinfo.ErrAcquire) {
			t.Errorf("error = %v, want ErrAcquire", err)
		}
	})
}

// TestCreateHeartbeat tests heartbeat message creation
func TestCreateHeartbeat(t *testing.T) {
	executor := NewExecutor(nil, nil, 0)

	hb := executor.CreateHeartbeat("1.0.0")
	if hb.Version != "1.0.0" {
		t.Errorf("CreateHeartbeat() version = %v, want 1.0.0", hb.Version)
	}

	ts, err := time.Parse(time.RFC3339, hb.Timestamp)
	if err != nil {
		t.Fatalf("CreateHeartbeat() timestamp not RFC3339 format: %v", err)
	}
	if ts.Location() != time.UTC {
		t.Errorf("CreateHeartbeat() timestamp not in UTC: %v", ts.Location())
	}
	if diff := time.Since(ts); diff > 2*time.Second || diff < -time.Second {
		t.Errorf("CreateHeartbeat() timestamp off by %v", diff)
	}
}
