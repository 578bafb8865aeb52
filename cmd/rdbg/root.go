package main

import (
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/remotedebug/internal/config"
	"github.com/dshills/remotedebug/internal/debug/wire"
	"github.com/dshills/remotedebug/internal/logging"
)

// globals holds what every subcommand shares once flags are parsed.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string
	httpAddr   string

	cfg     config.Config
	logger  zerolog.Logger
	level   *logging.Level
	watcher *config.Watcher
	out     io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	g := &globals{out: out}

	root := &cobra.Command{
		Use:           "rdbg",
		Short:         "Remote debugger front-end",
		Long:          "rdbg connects to a debuggee agent, installs breakpoints and other event requests,\nand reports what the debuggee does as a stream of debug events.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to configuration file (.toml, .yaml, .json)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: trace|debug|info|warn|error (overrides config)")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: json|console (overrides config)")
	pf.StringVar(&g.httpAddr, "http", "", "Serve /healthz, /status and /metrics on this address")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return g.setup(cmd)
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		g.close()
	}

	root.AddCommand(newAttachCmd(g), newLaunchCmd(g), newVersionCmd(out))
	return root
}

func (g *globals) setup(cmd *cobra.Command) error {
	cfg := config.Defaults()
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(config.DefaultEnvPrefix); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = g.logFormat
	}
	if flags.Changed("http") {
		cfg.HTTP.Enabled = g.httpAddr != ""
		cfg.HTTP.Addr = g.httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	g.cfg = cfg

	logger, level, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	g.logger, g.level = logger, level

	if g.configPath != "" {
		g.watcher, err = config.NewWatcher(g.configPath, g.reload,
			config.WithEnvPrefix(config.DefaultEnvPrefix),
			config.WithWatcherLogger(logger))
		if err != nil {
			logger.Warn().Err(err).Msg("config watch disabled")
		}
	}
	return nil
}

// reload applies the settings that can change during a session.
func (g *globals) reload(cfg config.Config, err error) {
	if err != nil {
		return
	}
	// A level given on the command line wins over the file.
	if g.logLevel != "" {
		return
	}
	if err := g.level.Set(cfg.Logging.Level); err != nil {
		g.logger.Warn().Err(err).Msg("ignoring reloaded log level")
		return
	}
	g.logger.Info().Str("level", cfg.Logging.Level).Msg("log level changed")
}

func (g *globals) close() {
	if g.watcher != nil {
		g.watcher.Close()
	}
}

func newAttachCmd(g *globals) *cobra.Command {
	var sess sessionFlags
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:     "attach [host:port]",
		Short:   "Attach to a debuggee agent listening on a socket",
		Example: "  rdbg attach localhost:8000 --break Main:12 --threads",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := g.cfg.Connection.Address
			if len(args) == 1 {
				addr = args[0]
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = g.cfg.Connection.DialTimeout.Std()
			}

			transport, err := wire.DialSocket(addr, timeout)
			if err != nil {
				return err
			}
			g.logger.Info().Str("addr", addr).Msg("attached")
			return runSession(cmd.Context(), g, transport, sess, false)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Dial timeout")
	sess.register(cmd)
	return cmd
}

func newLaunchCmd(g *globals) *cobra.Command {
	var sess sessionFlags

	cmd := &cobra.Command{
		Use:     "launch [-- agent-command args...]",
		Short:   "Start a debuggee agent and talk to it over stdio",
		Example: "  rdbg launch --break Main:12 -- debug-agent --stdio -cp app.jar Main",
		RunE: func(cmd *cobra.Command, args []string) error {
			argv := args
			if len(argv) == 0 {
				argv = g.cfg.Connection.AdapterCommand
			}
			if len(argv) == 0 {
				return fmt.Errorf("no agent command: pass one after -- or set connection.adapter_command")
			}

			agent := exec.CommandContext(cmd.Context(), argv[0], argv[1:]...)
			agent.Stderr = cmd.ErrOrStderr()
			transport, err := wire.NewStdioTransport(agent)
			if err != nil {
				return err
			}
			g.logger.Info().Strs("command", argv).Msg("launched")
			return runSession(cmd.Context(), g, transport, sess, true)
		},
	}
	sess.register(cmd)
	return cmd
}

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "rdbg %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}
}
