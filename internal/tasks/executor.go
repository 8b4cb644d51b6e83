package tasks

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"go.uber.org/zap"
)

// Executor takes snapshots for scheduled publishing and commands, and
// keeps the statistics reported by the health command
type Executor struct {
	logger         *zap.Logger
	provider       *sysinfo.Provider
	commandTimeout time.Duration
	stats          *ExecutorStats
	taskStats      *TaskStats
}

// ExecutorStats tracks command statistics for self-monitoring
type ExecutorStats struct {
	mu                sync.RWMutex
	startTime         time.Time
	commandsProcessed int64
	commandsErrored   int64
	lastError         string
	lastErrorTime     time.Time
}

// TaskStats tracks scheduled task execution for monitoring
type TaskStats struct {
	mu sync.RWMutex

	lastHeartbeat time.Time
	lastPublish   time.Time

	heartbeatCount  int64
	publishCount    int64
	publishFailures int64
}

// AgentMetrics represents agent self-monitoring metrics
type AgentMetrics struct {
	MemoryUsageMB     float64 `json:"memory_usage_mb"`
	Goroutines        int     `json:"goroutines"`
	UptimeSeconds     int64   `json:"uptime_seconds"`
	CommandsProcessed int64   `json:"commands_processed"`
	CommandsErrored   int64   `json:"commands_errored"`
	LastError         string  `json:"last_error,omitempty"`
	LastErrorTime     string  `json:"last_error_time,omitempty"`
}

// TaskHealthMetrics represents scheduled task health
type TaskHealthMetrics struct {
	LastHeartbeat string `json:"last_heartbeat,omitempty"`
	LastPublish   string `json:"last_publish,omitempty"`

	HeartbeatCount  int64 `json:"heartbeat_count"`
	PublishCount    int64 `json:"publish_count"`
	PublishFailures int64 `json:"publish_failures"`
}

// NewExecutor creates a new task executor. commandTimeout bounds a single
// snapshot; zero leaves only the per-probe timeouts.
func NewExecutor(logger *zap.Logger, provider *sysinfo.Provider, commandTimeout time.Duration) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Executor{
		logger:         logger,
		provider:       provider,
		commandTimeout: commandTimeout,
		stats:          &ExecutorStats{startTime: time.Now()},
		taskStats:      &TaskStats{},
	}
}

// round rounds to 2 decimal places
func round(val float64) float64 {
	return math.Round(val*100) / 100
}

// GetAgentMetrics returns current agent performance metrics
func (e *Executor) GetAgentMetrics() *AgentMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	e.stats.mu.RLock()
	defer e.stats.mu.RUnlock()

	metrics := &AgentMetrics{
		// mem.Sys is the full process footprint reported by the OS
		MemoryUsageMB:     round(float64(mem.Sys) / 1024 / 1024),
		Goroutines:        runtime.NumGoroutine(),
		UptimeSeconds:     int64(time.Since(e.stats.startTime).Seconds()),
		CommandsProcessed: e.stats.commandsProcessed,
		CommandsErrored:   e.stats.commandsErrored,
	}

	if !e.stats.lastErrorTime.IsZero() {
		metrics.LastError = e.stats.lastError
		metrics.LastErrorTime = e.stats.lastErrorTime.Format(time.RFC3339)
	}

	return metrics
}

// GetTaskMetrics returns scheduled task execution metrics
func (e *Executor) GetTaskMetrics() *TaskHealthMetrics {
	e.taskStats.mu.RLock()
	defer e.taskStats.mu.RUnlock()

	metrics := &TaskHealthMetrics{
		HeartbeatCount:  e.taskStats.heartbeatCount,
		PublishCount:    e.taskStats.publishCount,
		PublishFailures: e.taskStats.publishFailures,
	}

	// Only include timestamps if tasks have executed
	if !e.taskStats.lastHeartbeat.IsZero() {
		metrics.LastHeartbeat = e.taskStats.lastHeartbeat.Format(time.RFC3339)
	}
	if !e.taskStats.lastPublish.IsZero() {
		metrics.LastPublish = e.taskStats.lastPublish.Format(time.RFC3339)
	}

	return metrics
}

// RecordHeartbeat records a heartbeat execution
func (e *Executor) RecordHeartbeat() {
	e.taskStats.mu.Lock()
	defer e.taskStats.mu.Unlock()
	e.taskStats.lastHeartbeat = time.Now()
	e.taskStats.heartbeatCount++
}

// RecordPublishSuccess records a published snapshot
func (e *Executor) RecordPublishSuccess() {
	e.taskStats.mu.Lock()
	defer e.taskStats.mu.Unlock()
	e.taskStats.lastPublish = time.Now()
	e.taskStats.publishCount++
}

// RecordPublishFailure records a snapshot that could not be taken or sent
func (e *Executor) RecordPublishFailure() {
	e.taskStats.mu.Lock()
	defer e.taskStats.mu.Unlock()
	e.taskStats.publishFailures++
}

// RecordCommandSuccess increments success counter
func (e *Executor) RecordCommandSuccess() {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()
	e.stats.commandsProcessed++
}

// RecordCommandError increments error counter and stores last error
func (e *Executor) RecordCommandError(err error) {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()

	e.stats.commandsErrored++
	e.stats.commandsProcessed++ // Still counts as processed
	e.stats.lastError = err.Error()
	e.stats.lastErrorTime = time.Now()
}

// commandContext applies the command timeout to ctx
func (e *Executor) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.commandTimeout > 0 {
		return context.WithTimeout(ctx, e.commandTimeout)
	}
	return context.WithCancel(ctx)
}
