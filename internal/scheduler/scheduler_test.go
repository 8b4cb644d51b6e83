package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stone-age-io/hostfacts/internal/config"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"github.com/stone-age-io/hostfacts/internal/tasks"
	"go.uber.org/zap"
)

type message struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []message
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, message{subject, data})
	return nil
}

func (f *fakePublisher) PublishFacts(subject string, data []byte) error {
	return f.Publish(subject, data)
}

func (f *fakePublisher) bySubject(subject string) []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message
	for _, m := range f.messages {
		if m.subject == subject {
			out = append(out, m)
		}
	}
	return out
}

type kernelProbe struct{}

func (kernelProbe) Field() sysinfo.Field { return sysinfo.FieldKernel }

func (kernelProbe) Probe(ctx context.Context) (string, error) { return "6.8.0", nil }

func testAgentConfig() *config.AgentConfig {
	return &config.AgentConfig{
		DeviceID:          "dev-1",
		SubjectPrefix:     "hostfacts",
		PublishInterval:   time.Hour,
		HeartbeatInterval: time.Hour,
	}
}

func newTestScheduler(t *testing.T, cfg *config.AgentConfig, pub Publisher) (*Scheduler, *tasks.Executor) {
	t.Helper()
	provider := sysinfo.NewProvider(zap.NewNop(), []sysinfo.Probe{kernelProbe{}})
	executor := tasks.NewExecutor(zap.NewNop(), provider, time.Second)
	s, err := New(context.Background(), zap.NewNop(), pub, executor, cfg, nil, "1.2.3")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown() })
	return s, executor
}

func TestNew_JobCount(t *testing.T) {
	tests := []struct {
		name      string
		publish   time.Duration
		heartbeat time.Duration
		want      int
	}{
		{"both", time.Hour, time.Hour, 2},
		{"facts only", time.Hour, 0, 1},
		{"heartbeat only", 0, time.Hour, 1},
		{"disabled", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAgentConfig()
			cfg.PublishInterval = tt.publish
			cfg.HeartbeatInterval = tt.heartbeat

			s, _ := newTestScheduler(t, cfg, &fakePublisher{})
			if got := s.JobCount(); got != tt.want {
				t.Errorf("JobCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPublishFacts(t *testing.T) {
	pub := &fakePublisher{}
	s, executor := newTestScheduler(t, testAgentConfig(), pub)

	s.publishFacts()

	msgs := pub.bySubject("hostfacts.dev-1.facts")
	if len(msgs) != 1 {
		t.Fatalf("published %d facts messages, want 1", len(msgs))
	}

	var got tasks.FactsMessage
	if err := json.Unmarshal(msgs[0].data, &got); err != nil {
		t.Fatalf("facts payload is not valid JSON: %v", err)
	}
	if got.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want dev-1", got.DeviceID)
	}
	if executor.GetTaskMetrics().PublishCount != 1 {
		t.Errorf("PublishCount = %d, want 1", executor.GetTaskMetrics().PublishCount)
	}
}

func TestPublishFacts_Failure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("not connected")}
	s, executor := newTestScheduler(t, testAgentConfig(), pub)

	s.publishFacts()

	metrics := executor.GetTaskMetrics()
	if metrics.PublishFailures != 1 {
		t.Errorf("PublishFailures = %d, want 1", metrics.PublishFailures)
	}
	if metrics.PublishCount != 0 {
		t.Errorf("PublishCount = %d, want 0", metrics.PublishCount)
	}
}

func TestPublishHeartbeat(t *testing.T) {
	pub := &fakePublisher{}
	s, executor := newTestScheduler(t, testAgentConfig(), pub)

	s.publishHeartbeat()

	msgs := pub.bySubject("hostfacts.dev-1.heartbeat")
	if len(msgs) != 1 {
		t.Fatalf("published %d heartbeats, want 1", len(msgs))
	}

	var hb tasks.Heartbeat
	if err := json.Unmarshal(msgs[0].data, &hb); err != nil {
		t.Fatalf("heartbeat payload is not valid JSON: %v", err)
	}
	if hb.Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", hb.Version)
	}
	if executor.GetTaskMetrics().HeartbeatCount != 1 {
		t.Errorf("HeartbeatCount = %d, want 1", executor.GetTaskMetrics().HeartbeatCount)
	}
}

func TestStart_RunsImmediately(t *testing.T) {
	pub := &fakePublisher{}
	s, _ := newTestScheduler(t, testAgentConfig(), pub)

	s.Start()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(pub.bySubject("hostfacts.dev-1.facts")) > 0 && len(pub.bySubject("hostfacts.dev-1.heartbeat")) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("jobs did not run immediately after Start()")
}
