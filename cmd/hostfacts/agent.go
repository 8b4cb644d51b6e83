package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/stone-age-io/hostfacts/internal/agent"
	"github.com/stone-age-io/hostfacts/internal/config"
	"github.com/stone-age-io/hostfacts/internal/logging"
)

func buildAgentCommand(a *app) *cobra.Command {
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Run or manage the NATS agent service",
	}

	agentCmd.AddCommand(buildAgentRunCommand(a))
	for _, action := range service.ControlAction {
		agentCmd.AddCommand(buildAgentControlCommand(a, action))
	}
	agentCmd.AddCommand(buildAgentStatusCommand(a))

	return agentCmd
}

// agentLogging sends agent logs to agent.log_file unless logging.file is set
func agentLogging(cfg *config.Config) config.LoggingConfig {
	lc := cfg.Logging
	if lc.File == "" {
		lc.File = cfg.Agent.LogFile
	}
	return lc
}

func buildAgentRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent in the foreground or under the service manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateAgent(a.cfg); err != nil {
				return err
			}

			logger, err := logging.New(agentLogging(a.cfg))
			if err != nil {
				return err
			}
			a.logger = logger

			s, err := agent.NewService(a.cfg, logger, version, a.absConfigPath())
			if err != nil {
				return err
			}
			return s.Run()
		},
	}
}

func buildAgentControlCommand(a *app, action string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: fmt.Sprintf("%s the %s service", capitalize(action), agent.ServiceName),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := agent.NewService(a.cfg, a.logger, version, a.absConfigPath())
			if err != nil {
				return err
			}
			if err := agent.Control(s, action); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service %s: %s done\n", agent.ServiceName, action)
			return nil
		},
	}
}

func buildAgentStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := agent.NewService(a.cfg, a.logger, version, a.absConfigPath())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service %s: %s\n", agent.ServiceName, agent.StatusString(s))
			return nil
		},
	}
}

// absConfigPath resolves --config so the service finds it from any
// working directory
func (a *app) absConfigPath() string {
	if a.configPath == "" {
		return ""
	}
	if abs, err := filepath.Abs(a.configPath); err == nil {
		return abs
	}
	return a.configPath
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
