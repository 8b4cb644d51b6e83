// Package agent runs hostfacts as a long-lived NATS agent: it publishes
// facts snapshots and heartbeats on a schedule and answers commands.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/stone-age-io/hostfacts/internal/config"
	natsclient "github.com/stone-age-io/hostfacts/internal/nats"
	"github.com/stone-age-io/hostfacts/internal/probes"
	"github.com/stone-age-io/hostfacts/internal/scheduler"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"github.com/stone-age-io/hostfacts/internal/tasks"
	"go.uber.org/zap"
)

// jobRunner is the part of the scheduler the agent drives
type jobRunner interface {
	Start()
	Shutdown() error
	JobCount() int
}

// drainer is the part of the NATS client used on shutdown
type drainer interface {
	Drain(ctx context.Context) error
}

var (
	_ jobRunner = (*scheduler.Scheduler)(nil)
	_ drainer   = (*natsclient.Client)(nil)
)

// Agent represents the main agent
type Agent struct {
	config    *config.Config
	logger    *zap.Logger
	nats      drainer
	scheduler jobRunner
	handlers  *natsclient.CommandHandlers
	version   string
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

// New connects to NATS, subscribes to commands and prepares the scheduler.
// Nothing is published until Start.
func New(cfg *config.Config, logger *zap.Logger, version string) (*Agent, error) {
	if err := config.ValidateAgent(cfg); err != nil {
		return nil, fmt.Errorf("invalid agent configuration: %w", err)
	}

	fields, err := sysinfo.ParseFields(cfg.Display.Fields)
	if err != nil {
		return nil, fmt.Errorf("invalid display.fields: %w", err)
	}

	logger.Info("Starting hostfacts agent",
		zap.String("version", version),
		zap.String("device_id", cfg.Agent.DeviceID))

	ctx, cancel := context.WithCancel(context.Background())

	provider := probes.FromConfig(logger, cfg.Probes)
	executor := tasks.NewExecutor(logger, provider, cfg.Agent.CommandTimeout)

	natsClient, err := natsclient.NewClient(&cfg.Agent.NATS, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	handlers := natsclient.NewCommandHandlers(logger, &cfg.Agent, executor, natsClient, version)

	logger.Info("Subscribing to commands...")
	if err := handlers.SubscribeAll(natsClient); err != nil {
		cancel()
		natsClient.Close()
		return nil, fmt.Errorf("failed to subscribe to commands: %w", err)
	}

	sched, err := scheduler.New(ctx, logger, natsClient, executor, &cfg.Agent, fields, version)
	if err != nil {
		cancel()
		natsClient.Close()
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Agent{
		config:    cfg,
		logger:    logger,
		nats:      natsClient,
		scheduler: sched,
		handlers:  handlers,
		version:   version,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start runs the scheduled jobs and returns immediately
func (a *Agent) Start() {
	a.scheduler.Start()

	a.logger.Info("Agent running",
		zap.String("device_id", a.config.Agent.DeviceID),
		zap.Int("jobs", a.scheduler.JobCount()),
		zap.String("version", a.version))
}

// Done is closed once Shutdown begins
func (a *Agent) Done() <-chan struct{} {
	return a.ctx.Done()
}

// Shutdown gracefully shuts down the agent. Calling it again is a no-op.
func (a *Agent) Shutdown() error {
	var err error
	a.stopOnce.Do(func() {
		a.logger.Info("Shutting down agent gracefully")

		// Running snapshots observe the cancellation
		a.cancel()

		// Jobs stop before the connection drains so nothing publishes into it
		if serr := a.scheduler.Shutdown(); serr != nil {
			a.logger.Error("Error shutting down scheduler", zap.Error(serr))
		}

		drainCtx, drainCancel := context.WithTimeout(context.Background(), a.config.Agent.NATS.DrainTimeout)
		defer drainCancel()

		if err = a.nats.Drain(drainCtx); err != nil {
			a.logger.Error("Error draining NATS", zap.Error(err))
		}

		a.logger.Info("Agent shutdown complete")
		_ = a.logger.Sync()
	})
	return err
}
