package agent

import (
	"errors"
	"fmt"

	"github.com/kardianos/service"
	"github.com/stone-age-io/hostfacts/internal/config"
	"go.uber.org/zap"
)

// ServiceName is the name registered with the service manager
const ServiceName = "hostfacts"

// ServiceConfig describes the agent to systemd, launchd or the Windows SCM.
// configPath is passed back to "agent run" when the service starts.
func ServiceConfig(configPath string) *service.Config {
	args := []string{"agent", "run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	return &service.Config{
		Name:        ServiceName,
		DisplayName: "hostfacts agent",
		Description: "Publishes host facts snapshots over NATS.",
		Arguments:   args,
	}
}

// program adapts the agent to the service manager's start/stop hooks
type program struct {
	cfg     *config.Config
	logger  *zap.Logger
	version string
	agent   *Agent
	newFn   func(*config.Config, *zap.Logger, string) (*Agent, error)
}

// Start must not block
func (p *program) Start(s service.Service) error {
	if service.Interactive() {
		p.logger.Info("Running in terminal mode")
	} else {
		p.logger.Info("Running under service manager")
	}

	a, err := p.newFn(p.cfg, p.logger, p.version)
	if err != nil {
		return err
	}
	p.agent = a
	a.Start()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.agent == nil {
		return nil
	}
	return p.agent.Shutdown()
}

// NewService wraps the agent in a service; Run blocks until the service
// manager or an interrupt stops it
func NewService(cfg *config.Config, logger *zap.Logger, version, configPath string) (service.Service, error) {
	prg := &program{
		cfg:     cfg,
		logger:  logger,
		version: version,
		newFn:   New,
	}

	s, err := service.New(prg, ServiceConfig(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

// Control performs a service manager action (install, uninstall, start,
// stop, restart)
func Control(s service.Service, action string) error {
	valid := false
	for _, a := range service.ControlAction {
		if a == action {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown service action %q (valid: %v)", action, service.ControlAction)
	}

	if err := service.Control(s, action); err != nil {
		return fmt.Errorf("failed to %s service: %w", action, err)
	}
	return nil
}

// StatusString describes the installed service state
func StatusString(s service.Service) string {
	status, err := s.Status()
	if err != nil {
		if errors.Is(err, service.ErrNotInstalled) {
			return "not installed"
		}
		return fmt.Sprintf("unknown (%v)", err)
	}

	switch status {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
