package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/stone-age-io/hostfacts/internal/config"
	natsclient "github.com/stone-age-io/hostfacts/internal/nats"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"github.com/stone-age-io/hostfacts/internal/tasks"
	"go.uber.org/zap"
)

// Publisher sends scheduled messages; *nats.Client implements it
type Publisher interface {
	Publish(subject string, data []byte) error
	PublishFacts(subject string, data []byte) error
}

// Scheduler runs the periodic facts publish and heartbeat jobs
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *zap.Logger
	publisher Publisher
	executor  *tasks.Executor
	config    *config.AgentConfig
	subjects  natsclient.Subjects
	fields    []sysinfo.Field
	version   string
	ctx       context.Context
}

// New creates a scheduler and registers every job with a non-zero interval
func New(ctx context.Context, logger *zap.Logger, publisher Publisher, executor *tasks.Executor, cfg *config.AgentConfig, fields []sysinfo.Field, version string) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLogger(zapLogger{logger.Sugar()}))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	sched := &Scheduler{
		scheduler: s,
		logger:    logger,
		publisher: publisher,
		executor:  executor,
		config:    cfg,
		subjects:  natsclient.Subjects{Prefix: cfg.SubjectPrefix, DeviceID: cfg.DeviceID},
		fields:    fields,
		version:   version,
		ctx:       ctx,
	}

	if cfg.HeartbeatInterval > 0 {
		if _, err := s.NewJob(
			gocron.DurationJob(cfg.HeartbeatInterval),
			gocron.NewTask(sched.publishHeartbeat),
			gocron.WithName("heartbeat"),
			gocron.WithStartAt(gocron.WithStartImmediately()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, fmt.Errorf("failed to schedule heartbeat: %w", err)
		}
		logger.Info("Scheduled heartbeat", zap.Duration("interval", cfg.HeartbeatInterval))
	}

	if cfg.PublishInterval > 0 {
		if _, err := s.NewJob(
			gocron.DurationJob(cfg.PublishInterval),
			gocron.NewTask(sched.publishFacts),
			gocron.WithName("facts"),
			gocron.WithStartAt(gocron.WithStartImmediately()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, fmt.Errorf("failed to schedule facts publishing: %w", err)
		}
		logger.Info("Scheduled facts publishing", zap.Duration("interval", cfg.PublishInterval))
	}

	return sched, nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Shutdown stops the scheduler and waits for running jobs
func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

// JobCount returns the number of registered jobs
func (s *Scheduler) JobCount() int {
	return len(s.scheduler.Jobs())
}

func (s *Scheduler) publishHeartbeat() {
	data, err := json.Marshal(s.executor.CreateHeartbeat(s.version))
	if err != nil {
		s.logger.Error("Failed to encode heartbeat", zap.Error(err))
		return
	}

	if err := s.publisher.Publish(s.subjects.Heartbeat(), data); err != nil {
		s.logger.Warn("Failed to publish heartbeat", zap.Error(err))
		return
	}
	s.executor.RecordHeartbeat()
}

func (s *Scheduler) publishFacts() {
	if s.ctx.Err() != nil {
		return
	}

	msg, err := s.executor.CollectFacts(s.ctx, s.config.DeviceID, s.fields)
	if err != nil {
		s.logger.Warn("Failed to collect facts", zap.Error(err))
		s.executor.RecordPublishFailure()
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to encode facts", zap.Error(err))
		s.executor.RecordPublishFailure()
		return
	}

	if err := s.publisher.PublishFacts(s.subjects.Facts(), data); err != nil {
		s.logger.Warn("Failed to publish facts", zap.Error(err))
		s.executor.RecordPublishFailure()
		return
	}

	s.executor.RecordPublishSuccess()
	s.logger.Debug("Published facts",
		zap.String("subject", s.subjects.Facts()),
		zap.Int("unavailable", len(msg.Unavailable)))
}

// zapLogger adapts zap to gocron's logger interface
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l zapLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
