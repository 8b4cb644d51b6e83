package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/stone-age-io/hostfacts/internal/display"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"go.uber.org/zap"
)

// FactsMessage is the payload published on the facts subject and
// returned by the facts command
type FactsMessage struct {
	DeviceID    string          `json:"device_id"`
	Hostname    string          `json:"hostname,omitempty"`
	Timestamp   string          `json:"timestamp"`
	Facts       json.RawMessage `json:"facts"`
	Unavailable []string        `json:"unavailable,omitempty"`
}

// Heartbeat is the periodic liveness message
type Heartbeat struct {
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// CreateHeartbeat creates a heartbeat message
func (e *Executor) CreateHeartbeat(version string) *Heartbeat {
	return &Heartbeat{
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// CollectFacts takes a fresh snapshot and converts it into a message.
// The snapshot is released before returning.
func (e *Executor) CollectFacts(ctx context.Context, deviceID string, fields []sysinfo.Field) (*FactsMessage, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", sysinfo.ErrAcquire)
	}

	ctx, cancel := e.commandContext(ctx)
	defer cancel()

	if len(fields) == 0 {
		fields = sysinfo.AllFields()
	}

	start := time.Now()
	var msg *FactsMessage
	err := e.provider.With(ctx, func(info sysinfo.SystemInfo) error {
		facts, err := display.MarshalJSON(info, fields)
		if err != nil {
			return fmt.Errorf("failed to encode facts: %w", err)
		}

		msg = &FactsMessage{
			DeviceID:  deviceID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Facts:     facts,
		}
		for _, f := range fields {
			if !info.Available(f) {
				msg.Unavailable = append(msg.Unavailable, f.Key())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if host, err := os.Hostname(); err == nil {
		msg.Hostname = host
	}

	e.logger.Debug("Collected facts",
		zap.Int("fields", len(fields)),
		zap.Int("unavailable", len(msg.Unavailable)),
		zap.Duration("elapsed", time.Since(start)))

	return msg, nil
}
