package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stone-age-io/hostfacts/internal/config"
	"github.com/stone-age-io/hostfacts/internal/display"
	"github.com/stone-age-io/hostfacts/internal/logging"
	"github.com/stone-age-io/hostfacts/internal/probes"
	"github.com/stone-age-io/hostfacts/internal/server"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"go.uber.org/zap"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

// app holds state shared by every command after flags are parsed
type app struct {
	configPath string
	logLevel   string
	format     string
	color      string
	fields     []string
	separator  string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := buildRootCommand(&app{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hostfacts",
		Short:         "Print a snapshot of facts about this host",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printFacts(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default searches ., the user config dir and "+config.GetDefaultConfigPath()+")")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.format, "format", "", "output format (text, json, yaml, prom)")
	flags.StringVar(&a.color, "color", "", "color mode for text output (auto, always, never)")
	flags.StringSliceVar(&a.fields, "fields", nil, "comma-separated fields in display order ("+joinKeys()+")")
	flags.StringVar(&a.separator, "separator", "", "character repeated under the text header")

	rootCmd.AddCommand(buildFieldCommand(a))
	rootCmd.AddCommand(buildServeCommand(a))
	rootCmd.AddCommand(buildAgentCommand(a))
	rootCmd.AddCommand(buildVersionCommand())

	return rootCmd
}

// setup loads the config, applies flag overrides and builds the logger
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if err := a.applyOverrides(cmd, cfg); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// applyOverrides copies explicitly set flags into cfg and revalidates it
func (a *app) applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("format") {
		cfg.Display.Format = a.format
	}
	if flags.Changed("color") {
		cfg.Display.Color = a.color
	}
	if flags.Changed("fields") {
		cfg.Display.Fields = a.fields
	}
	if flags.Changed("separator") {
		cfg.Display.Separator = a.separator
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func (a *app) provider() *sysinfo.Provider {
	return probes.FromConfig(a.logger, a.cfg.Probes)
}

// renderOptions resolves the display settings for out
func (a *app) renderOptions(out *os.File) (display.Options, error) {
	fields, err := sysinfo.ParseFields(a.cfg.Display.Fields)
	if err != nil {
		return display.Options{}, err
	}

	color, err := display.ResolveColor(a.cfg.Display.Color, out)
	if err != nil {
		return display.Options{}, err
	}

	host, err := os.Hostname()
	if err != nil {
		a.logger.Debug("Hostname unavailable for header", zap.Error(err))
	}

	return display.Options{
		Format:    a.cfg.Display.Format,
		Fields:    fields,
		Color:     color,
		Separator: a.cfg.Display.Separator,
		Hostname:  host,
	}, nil
}

func (a *app) printFacts(ctx context.Context) error {
	opts, err := a.renderOptions(os.Stdout)
	if err != nil {
		return err
	}

	return a.provider().With(ctx, func(info sysinfo.SystemInfo) error {
		return display.Render(os.Stdout, info, opts)
	})
}

func buildFieldCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "field <key>",
		Short:     "Print a single fact",
		Long:      "Print a single fact. Valid keys: " + joinKeys() + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: sysinfo.FieldKeys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			field, err := sysinfo.ParseField(args[0])
			if err != nil {
				return err
			}

			return a.provider().With(cmd.Context(), func(info sysinfo.SystemInfo) error {
				return display.RenderField(os.Stdout, info, field)
			})
		},
	}
}

func buildServeCommand(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve facts over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				a.cfg.Server.Listen = listen
			}

			fields, err := sysinfo.ParseFields(a.cfg.Display.Fields)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.New(a.logger, a.cfg.Server, a.provider(), fields).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides server.listen)")

	return cmd
}

func buildVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// No config or logger needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hostfacts %s\n", version)
		},
	}
}

func joinKeys() string {
	return strings.Join(sysinfo.FieldKeys(), ", ")
}
