package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stone-age-io/hostfacts/internal/config"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"github.com/stone-age-io/hostfacts/internal/tasks"
	"go.uber.org/zap"
)

// Subscriber registers message handlers; *Client implements it
type Subscriber interface {
	Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error)
}

// ConnectionState reports the transport state for health responses
type ConnectionState interface {
	IsConnected() bool
	JetStreamEnabled() bool
}

// CommandHandlers manages all command subscriptions and handlers
type CommandHandlers struct {
	logger       *zap.Logger
	config       *config.AgentConfig
	subjects     Subjects
	taskExecutor *tasks.Executor
	conn         ConnectionState
	version      string
}

// NewCommandHandlers creates a new command handler manager
func NewCommandHandlers(logger *zap.Logger, cfg *config.AgentConfig, executor *tasks.Executor, conn ConnectionState, version string) *CommandHandlers {
	return &CommandHandlers{
		logger:       logger,
		config:       cfg,
		subjects:     Subjects{Prefix: cfg.SubjectPrefix, DeviceID: cfg.DeviceID},
		taskExecutor: executor,
		conn:         conn,
		version:      version,
	}
}

// handleWithRecovery wraps a command handler with panic recovery
func (h *CommandHandlers) handleWithRecovery(name string, handler nats.MsgHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("Panic recovered in command handler",
					zap.String("handler", name),
					zap.String("subject", msg.Subject),
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())))

				h.taskExecutor.RecordCommandError(fmt.Errorf("handler %s panicked: %v", name, r))
				h.respond(msg, errorReply(fmt.Sprintf("Internal error: handler panicked: %v", r)))
			}
		}()

		handler(msg)
	}
}

// SubscribeAll subscribes to all command subjects for this device
func (h *CommandHandlers) SubscribeAll(client Subscriber) error {
	handlers := []struct {
		name    string
		handler nats.MsgHandler
	}{
		{CommandPing, h.handlePing},
		{CommandFacts, h.handleFacts},
		{CommandHealth, h.handleHealth},
	}

	for _, c := range handlers {
		if _, err := client.Subscribe(h.subjects.Command(c.name), h.handleWithRecovery(c.name, c.handler)); err != nil {
			return err
		}
	}
	return nil
}

// Response structures

type pingResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type factsRequest struct {
	Fields []string `json:"fields"`
}

type factsResponse struct {
	Status string `json:"status"`
	*tasks.FactsMessage
}

type healthResponse struct {
	Status        string                   `json:"status"`
	Version       string                   `json:"version"`
	NATSConnected bool                     `json:"nats_connected"`
	JetStream     bool                     `json:"jetstream"`
	AgentMetrics  *tasks.AgentMetrics      `json:"agent_metrics"`
	TaskMetrics   *tasks.TaskHealthMetrics `json:"task_metrics"`
	Timestamp     string                   `json:"timestamp"`
}

type errorResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func errorReply(errorMsg string) errorResponse {
	return errorResponse{
		Status:    "error",
		Error:     errorMsg,
		Timestamp: now(),
	}
}

// respond marshals and sends a reply. Messages published without a
// reply subject are dropped.
func (h *CommandHandlers) respond(msg *nats.Msg, response any) {
	responseBytes, err := json.Marshal(response)
	if err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		return
	}
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(responseBytes); err != nil {
		h.logger.Warn("Failed to send response",
			zap.String("subject", msg.Subject),
			zap.Error(err))
	}
}

// handlePing responds to ping commands
func (h *CommandHandlers) handlePing(msg *nats.Msg) {
	h.logger.Debug("Received ping command")

	h.taskExecutor.RecordCommandSuccess()
	h.respond(msg, pingResponse{
		Status:    "pong",
		Timestamp: now(),
	})
}

// handleFacts takes a snapshot and returns it to the caller
func (h *CommandHandlers) handleFacts(msg *nats.Msg) {
	h.logger.Debug("Received facts command")
	h.respond(msg, h.factsReply(context.Background(), msg.Data))
}

// factsReply builds the facts command response from the request payload.
// An empty payload requests every field.
func (h *CommandHandlers) factsReply(ctx context.Context, data []byte) any {
	var req factsRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			h.logger.Error("Failed to parse facts request", zap.Error(err))
			h.taskExecutor.RecordCommandError(err)
			return errorReply("Invalid request format")
		}
	}

	fields, err := sysinfo.ParseFields(req.Fields)
	if err != nil {
		h.taskExecutor.RecordCommandError(err)
		return errorReply(err.Error())
	}

	facts, err := h.taskExecutor.CollectFacts(ctx, h.config.DeviceID, fields)
	if err != nil {
		h.logger.Error("Facts collection failed", zap.Error(err))
		h.taskExecutor.RecordCommandError(err)
		return errorReply(err.Error())
	}

	h.taskExecutor.RecordCommandSuccess()
	return factsResponse{Status: "success", FactsMessage: facts}
}

// handleHealth returns agent health and performance metrics
func (h *CommandHandlers) handleHealth(msg *nats.Msg) {
	h.logger.Debug("Received health check command")

	h.taskExecutor.RecordCommandSuccess()
	h.respond(msg, h.healthReply())
}

func (h *CommandHandlers) healthReply() healthResponse {
	response := healthResponse{
		Status:       "healthy",
		Version:      h.version,
		AgentMetrics: h.taskExecutor.GetAgentMetrics(),
		TaskMetrics:  h.taskExecutor.GetTaskMetrics(),
		Timestamp:    now(),
	}
	if h.conn != nil {
		response.NATSConnected = h.conn.IsConnected()
		response.JetStream = h.conn.JetStreamEnabled()
	}
	if !response.NATSConnected {
		response.Status = "degraded"
	}
	return response
}
